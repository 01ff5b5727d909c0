// Package translate renders user-facing message text in the host locale.
package translate

import (
	"log"
	"sync"

	"github.com/jeandeaual/go-locale"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	printerOnce sync.Once
	printer     *message.Printer
	printerLock sync.RWMutex
)

func hostPrinter() *message.Printer {
	locales, err := locale.GetLocales()
	if err != nil {
		log.Printf("serialbridge: locale: %v", err)
	}

	if len(locales) == 0 {
		locales = []string{"en-US"}
	}

	return message.NewPrinter(message.MatchLanguage(locales...))
}

func current() *message.Printer {
	printerOnce.Do(func() {
		p := hostPrinter()
		printerLock.Lock()
		if printer == nil {
			printer = p
		}
		printerLock.Unlock()
	})

	printerLock.RLock()
	defer printerLock.RUnlock()
	return printer
}

// SetLanguage overrides the host locale. An empty tag restores it.
func SetLanguage(tag string) (err error) {
	var p *message.Printer
	if tag == "" {
		p = hostPrinter()
	} else {
		var lang language.Tag
		lang, err = language.Parse(tag)
		if err != nil {
			return
		}
		p = message.NewPrinter(lang)
	}

	printerOnce.Do(func() {})
	printerLock.Lock()
	printer = p
	printerLock.Unlock()

	return
}

// From an en-US Sprintf() format, translate to string.
func From(key message.Reference, args ...any) string {
	return current().Sprintf(key, args...)
}
