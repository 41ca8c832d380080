// Package xmltv writes XMLTV program guides.
package xmltv

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"time"
)

// TimeLayout is the XMLTV timestamp format.
const TimeLayout = "20060102150405 -0700"

// Channel is a guide channel definition.
type Channel struct {
	ID          string
	DisplayName string
	Icon        string
	URL         string
}

// Programme is one guide entry.
type Programme struct {
	Start       time.Time
	Stop        time.Time
	Channel     string
	Title       string
	Description string
	// Language defaults to "en".
	Language string
}

type icon struct {
	Src string `xml:"src,attr"`
}

type text struct {
	Lang  string `xml:"lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

type channelElement struct {
	XMLName     xml.Name `xml:"channel"`
	ID          string   `xml:"id,attr"`
	DisplayName string   `xml:"display-name"`
	Icon        *icon    `xml:"icon,omitempty"`
	URL         string   `xml:"url,omitempty"`
}

type programmeElement struct {
	XMLName xml.Name `xml:"programme"`
	Start   string   `xml:"start,attr"`
	Stop    string   `xml:"stop,attr"`
	Channel string   `xml:"channel,attr"`
	Title   text     `xml:"title"`
	Desc    *text    `xml:"desc,omitempty"`
}

// Writer streams an XMLTV document. Channels must be written before any
// programme, and Close ends the document.
type Writer struct {
	w             io.Writer
	enc           *xml.Encoder
	generator     string
	headerWritten bool
	channelsDone  bool
	closed        bool
}

// NewWriter creates a writer naming generator in the tv element.
func NewWriter(w io.Writer, generator string) *Writer {
	enc := xml.NewEncoder(w)
	enc.Indent("  ", "  ")
	return &Writer{w: w, enc: enc, generator: generator}
}

// WriteHeader writes the XML declaration and opens the tv element.
func (w *Writer) WriteHeader() error {
	if w.headerWritten {
		return nil
	}
	_, err := fmt.Fprintf(w.w, "%s<tv generator-info-name=\"%s\">\n", xml.Header, xmlEscape(w.generator))
	if err != nil {
		return fmt.Errorf("writing tv element: %w", err)
	}
	w.headerWritten = true
	return nil
}

// WriteChannel writes a channel definition.
func (w *Writer) WriteChannel(ch Channel) error {
	if w.channelsDone {
		return errors.New("channels must be written before programmes")
	}
	el := channelElement{ID: ch.ID, DisplayName: ch.DisplayName, URL: ch.URL}
	if ch.Icon != "" {
		el.Icon = &icon{Src: ch.Icon}
	}
	return w.encode(el)
}

// WriteProgramme writes a programme entry.
func (w *Writer) WriteProgramme(prog Programme) error {
	w.channelsDone = true

	lang := prog.Language
	if lang == "" {
		lang = "en"
	}
	el := programmeElement{
		Start:   prog.Start.Format(TimeLayout),
		Stop:    prog.Stop.Format(TimeLayout),
		Channel: prog.Channel,
		Title:   text{Lang: lang, Value: prog.Title},
	}
	if prog.Description != "" {
		el.Desc = &text{Lang: lang, Value: prog.Description}
	}
	return w.encode(el)
}

func (w *Writer) encode(el any) error {
	if w.closed {
		return errors.New("xmltv writer closed")
	}
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if err := w.enc.Encode(el); err != nil {
		return fmt.Errorf("writing %T: %w", el, err)
	}
	return nil
}

// Close closes the tv element. It writes the header first if nothing was
// written, so an empty guide is still a valid document.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	if err := w.WriteHeader(); err != nil {
		return err
	}
	w.closed = true
	if err := w.enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w.w, "\n</tv>\n")
	return err
}

func xmlEscape(s string) string {
	var buf []byte
	xml.EscapeText((*escapeWriter)(&buf), []byte(s))
	return string(buf)
}

type escapeWriter []byte

func (w *escapeWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}
