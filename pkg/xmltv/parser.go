// Package xmltv provides streaming XMLTV parsing and writing.
// It supports standard XMLTV format for electronic program guide data.
package xmltv

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// Channel represents a channel definition in an XMLTV file.
type Channel struct {
	ID          string
	DisplayName string
	Icon        string
}

// Programme represents a single program entry in an XMLTV file.
// The [Start, Stop) interval is half-open.
type Programme struct {
	Start       time.Time
	Stop        time.Time
	Channel     string
	Title       string
	SubTitle    string
	Description string
	Category    string
	Icon        string
}

// Parser provides streaming XMLTV parsing with callback-based processing.
// Elements are handed to the callbacks as they are decoded; the document is
// never held in memory as a whole.
type Parser struct {
	// OnChannel is called for each channel definition.
	OnChannel func(channel *Channel) error

	// OnProgramme is called for each parsed programme.
	OnProgramme func(programme *Programme) error

	// OnError is called for recoverable parsing errors (such as a
	// programme with an unparsable timestamp). The element is skipped.
	OnError func(err error)
}

// parseXMLTVTime parses XMLTV time format: "20240101120000 +0000".
func parseXMLTVTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}

	formats := []string{
		"20060102150405 -0700",
		"20060102150405",
		"200601021504",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time: %s", s)
}

// Parse parses an XMLTV document from a reader.
func (p *Parser) Parse(r io.Reader) error {
	decoder := xml.NewDecoder(r)
	decoder.Strict = false
	decoder.AutoClose = xml.HTMLAutoClose
	decoder.Entity = xml.HTMLEntity

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading XML token: %w", err)
		}

		elem, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		switch elem.Name.Local {
		case "channel":
			if p.OnChannel == nil {
				_ = decoder.Skip()
				continue
			}
			channel, err := p.parseChannel(decoder, elem)
			if err != nil {
				p.handleError(err)
				continue
			}
			if err := p.OnChannel(channel); err != nil {
				return fmt.Errorf("channel callback: %w", err)
			}

		case "programme":
			if p.OnProgramme == nil {
				_ = decoder.Skip()
				continue
			}
			programme, err := p.parseProgramme(decoder, elem)
			if err != nil {
				p.handleError(err)
				continue
			}
			if err := p.OnProgramme(programme); err != nil {
				return fmt.Errorf("programme callback: %w", err)
			}
		}
	}

	return nil
}

// ParseCompressed parses a potentially compressed XMLTV document.
// Compression is auto-detected from magic bytes: gzip, bzip2, and xz are
// supported; anything else is treated as plain XML.
func (p *Parser) ParseCompressed(r io.Reader) error {
	br := bufio.NewReader(r)

	header, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return fmt.Errorf("peeking header: %w", err)
	}

	var reader io.Reader = br

	switch {
	case len(header) >= 2 && header[0] == 0x1f && header[1] == 0x8b:
		gzr, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gzr.Close()
		reader = gzr

	case len(header) >= 3 && header[0] == 'B' && header[1] == 'Z' && header[2] == 'h':
		reader = bzip2.NewReader(br)

	case len(header) >= 6 && header[0] == 0xfd && header[1] == '7' && header[2] == 'z' &&
		header[3] == 'X' && header[4] == 'Z' && header[5] == 0x00:
		xzr, err := xz.NewReader(br)
		if err != nil {
			return fmt.Errorf("creating xz reader: %w", err)
		}
		reader = xzr
	}

	return p.Parse(reader)
}

// parseChannel parses a channel element.
func (p *Parser) parseChannel(decoder *xml.Decoder, start xml.StartElement) (*Channel, error) {
	channel := &Channel{}

	for _, attr := range start.Attr {
		if attr.Name.Local == "id" {
			channel.ID = attr.Value
		}
	}

	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}

		switch elem := token.(type) {
		case xml.StartElement:
			switch elem.Name.Local {
			case "display-name":
				var name string
				if err := decoder.DecodeElement(&name, &elem); err == nil && channel.DisplayName == "" {
					channel.DisplayName = strings.TrimSpace(name)
				}
			case "icon":
				for _, attr := range elem.Attr {
					if attr.Name.Local == "src" {
						channel.Icon = attr.Value
					}
				}
				_ = decoder.Skip()
			default:
				_ = decoder.Skip()
			}
		case xml.EndElement:
			if elem.Name.Local == "channel" {
				if channel.ID == "" {
					return nil, fmt.Errorf("channel element without id")
				}
				return channel, nil
			}
		}
	}
}

// parseProgramme parses a programme element.
func (p *Parser) parseProgramme(decoder *xml.Decoder, start xml.StartElement) (*Programme, error) {
	prog := &Programme{}

	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "start":
			t, err := parseXMLTVTime(attr.Value)
			if err != nil {
				return nil, fmt.Errorf("programme start: %w", err)
			}
			prog.Start = t
		case "stop":
			t, err := parseXMLTVTime(attr.Value)
			if err != nil {
				return nil, fmt.Errorf("programme stop: %w", err)
			}
			prog.Stop = t
		case "channel":
			prog.Channel = attr.Value
		}
	}

	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, err
		}

		switch elem := token.(type) {
		case xml.StartElement:
			switch elem.Name.Local {
			case "title":
				var title string
				if err := decoder.DecodeElement(&title, &elem); err == nil && prog.Title == "" {
					prog.Title = strings.TrimSpace(title)
				}
			case "sub-title":
				var subtitle string
				if err := decoder.DecodeElement(&subtitle, &elem); err == nil {
					prog.SubTitle = strings.TrimSpace(subtitle)
				}
			case "desc":
				var desc string
				if err := decoder.DecodeElement(&desc, &elem); err == nil {
					prog.Description = strings.TrimSpace(desc)
				}
			case "category":
				var cat string
				if err := decoder.DecodeElement(&cat, &elem); err == nil && prog.Category == "" {
					prog.Category = strings.TrimSpace(cat)
				}
			case "icon":
				for _, attr := range elem.Attr {
					if attr.Name.Local == "src" {
						prog.Icon = attr.Value
					}
				}
				_ = decoder.Skip()
			default:
				_ = decoder.Skip()
			}
		case xml.EndElement:
			if elem.Name.Local == "programme" {
				if prog.Channel == "" {
					return nil, fmt.Errorf("programme element without channel")
				}
				return prog, nil
			}
		}
	}
}

// handleError calls the OnError callback if set.
func (p *Parser) handleError(err error) {
	if p.OnError != nil {
		p.OnError(err)
	}
}
