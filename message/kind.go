package message

// Kind selects one of the two synthetic endpoints.
type Kind int

//go:generate go tool stringer -type=Kind -linecomment
const (
	KindRead  = Kind(0) // read
	KindWrite = Kind(1) // write
)

// Kinds lists every Kind.
var Kinds = []Kind{KindRead, KindWrite}

// Path is the synthetic endpoint for the kind.
func (k Kind) Path() string {
	return "/" + k.String()
}

// Method is the HTTP method used against the synthetic endpoint.
func (k Kind) Method() string {
	if k == KindWrite {
		return "POST"
	}
	return "GET"
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindRead || k == KindWrite
}
