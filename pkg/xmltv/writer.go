package xmltv

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// Writer provides streaming XMLTV document writing. Channels must be written
// before programmes, matching the XMLTV DTD element order.
type Writer struct {
	w             io.Writer
	sourceName    string
	headerWritten bool
	channelsDone  bool
}

// NewWriter creates a new XMLTV writer. sourceName fills the tv element's
// source-info-name attribute.
func NewWriter(w io.Writer, sourceName string) *Writer {
	return &Writer{w: w, sourceName: sourceName}
}

// WriteHeader writes the XML declaration and opens the tv element.
func (w *Writer) WriteHeader() error {
	if w.headerWritten {
		return nil
	}
	if _, err := fmt.Fprintln(w.w, `<?xml version="1.0" encoding="UTF-8"?>`); err != nil {
		return fmt.Errorf("writing XML declaration: %w", err)
	}
	if _, err := fmt.Fprintf(w.w, "<tv source-info-name=%q>\n", w.sourceName); err != nil {
		return fmt.Errorf("writing tv element: %w", err)
	}
	w.headerWritten = true
	return nil
}

// WriteChannel writes a channel definition.
func (w *Writer) WriteChannel(ch *Channel) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if w.channelsDone {
		return fmt.Errorf("channels must be written before programmes")
	}

	if _, err := fmt.Fprintf(w.w, "  <channel id=\"%s\">\n", xmlEscape(ch.ID)); err != nil {
		return fmt.Errorf("writing channel: %w", err)
	}
	if _, err := fmt.Fprintf(w.w, "    <display-name>%s</display-name>\n", xmlEscape(ch.DisplayName)); err != nil {
		return err
	}
	if ch.Icon != "" {
		if _, err := fmt.Fprintf(w.w, "    <icon src=\"%s\"/>\n", xmlEscape(ch.Icon)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w.w, "  </channel>")
	return err
}

// WriteProgramme writes a programme entry.
func (w *Writer) WriteProgramme(prog *Programme) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	w.channelsDone = true

	if _, err := fmt.Fprintf(w.w, "  <programme start=\"%s\" stop=\"%s\" channel=\"%s\">\n",
		formatXMLTVTime(prog.Start), formatXMLTVTime(prog.Stop), xmlEscape(prog.Channel)); err != nil {
		return fmt.Errorf("writing programme: %w", err)
	}

	if _, err := fmt.Fprintf(w.w, "    <title>%s</title>\n", xmlEscape(prog.Title)); err != nil {
		return err
	}
	if prog.SubTitle != "" {
		if _, err := fmt.Fprintf(w.w, "    <sub-title>%s</sub-title>\n", xmlEscape(prog.SubTitle)); err != nil {
			return err
		}
	}
	if prog.Description != "" {
		if _, err := fmt.Fprintf(w.w, "    <desc>%s</desc>\n", xmlEscape(prog.Description)); err != nil {
			return err
		}
	}
	if prog.Category != "" {
		if _, err := fmt.Fprintf(w.w, "    <category>%s</category>\n", xmlEscape(prog.Category)); err != nil {
			return err
		}
	}
	if prog.Icon != "" {
		if _, err := fmt.Fprintf(w.w, "    <icon src=\"%s\"/>\n", xmlEscape(prog.Icon)); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w.w, "  </programme>")
	return err
}

// WriteFooter closes the tv element.
func (w *Writer) WriteFooter() error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w.w, "</tv>")
	return err
}

// formatXMLTVTime formats a time in XMLTV format. Emission is always UTC.
func formatXMLTVTime(t time.Time) string {
	return t.UTC().Format("20060102150405 +0000")
}

// xmlEscape escapes special XML characters.
func xmlEscape(s string) string {
	var buf []byte
	_ = xml.EscapeText((*xmlEscapeWriter)(&buf), []byte(s))
	return string(buf)
}

// xmlEscapeWriter is a helper for xml.EscapeText.
type xmlEscapeWriter []byte

func (w *xmlEscapeWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}
