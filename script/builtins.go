package script

import (
	"go.starlark.net/starlark"
)

func (rt *Runtime) builtins() starlark.StringDict {
	return starlark.StringDict{
		"write_serial": starlark.NewBuiltin("write_serial", rt.writeSerial),
		"read_serial":  starlark.NewBuiltin("read_serial", rt.readSerial),
		"write":        starlark.NewBuiltin("write", rt.write),
		"read":         starlark.NewBuiltin("read", rt.read),
	}
}

// write_serial(data) sends a str or bytes unchanged.
func (rt *Runtime) writeSerial(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (rc starlark.Value, err error) {
	var data starlark.Value
	err = starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &data)
	if err != nil {
		return
	}

	var p []byte
	switch v := data.(type) {
	case starlark.String:
		p = []byte(v)
	case starlark.Bytes:
		p = []byte(v)
	default:
		err = &ErrType{Builtin: b.Name(), Got: data.Type()}
		return
	}

	err = rt.Caller.Write(contextOf(thread), p)
	if err != nil {
		return
	}

	rc = starlark.None
	return
}

// read_serial() returns the next chunk sent by the device.
func (rt *Runtime) readSerial(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (rc starlark.Value, err error) {
	err = starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0)
	if err != nil {
		return
	}

	data, err := rt.Caller.Read(contextOf(thread))
	if err != nil {
		return
	}

	rc = starlark.String(data)
	return
}

// write(addr, data) or write([addr...], [data...]) stores registers.
func (rt *Runtime) write(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (rc starlark.Value, err error) {
	var addr, data starlark.Value
	err = starlark.UnpackArgs(b.Name(), args, kwargs, "addr", &addr, "data", &data)
	if err != nil {
		return
	}

	addrs, _, err := words("address", addr)
	if err != nil {
		return
	}
	datas, _, err := words("data", data)
	if err != nil {
		return
	}
	if len(addrs) != len(datas) {
		err = ErrPairing
		return
	}

	err = rt.Caller.WriteRegisters(contextOf(thread), addrs, datas)
	if err != nil {
		return
	}

	rc = starlark.None
	return
}

// read(addr) returns an int; read([addr...]) returns a list.
func (rt *Runtime) read(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (rc starlark.Value, err error) {
	var addr starlark.Value
	err = starlark.UnpackArgs(b.Name(), args, kwargs, "addr", &addr)
	if err != nil {
		return
	}

	addrs, list, err := words("address", addr)
	if err != nil {
		return
	}

	datas, err := rt.Caller.ReadRegisters(contextOf(thread), addrs)
	if err != nil {
		return
	}

	if !list {
		rc = starlark.MakeInt(int(datas[0]))
		return
	}

	elems := make([]starlark.Value, len(datas))
	for n, data := range datas {
		elems[n] = starlark.MakeInt(int(data))
	}
	rc = starlark.NewList(elems)

	return
}

// words converts an int or an iterable of ints to 16-bit words.
func words(what string, v starlark.Value) (out []uint16, list bool, err error) {
	iterable, list := v.(starlark.Iterable)
	if !list {
		var word uint16
		word, err = toWord(what, v)
		out = []uint16{word}
		return
	}

	iter := iterable.Iterate()
	defer iter.Done()

	var elem starlark.Value
	for iter.Next(&elem) {
		var word uint16
		word, err = toWord(what, elem)
		if err != nil {
			return
		}
		out = append(out, word)
	}

	return
}

func toWord(what string, v starlark.Value) (word uint16, err error) {
	var value int64
	err = starlark.AsInt(v, &value)
	if err != nil {
		return
	}
	if value < 0 || value > 0xffff {
		err = &ErrRange{What: what, Value: value}
		return
	}
	word = uint16(value)
	return
}
