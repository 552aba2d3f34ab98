// Package transfer implements the line-oriented digest-transfer format that
// carries per-variant content digests from the digest-generation phase to the
// signature-application phase across the air gap.
//
// The format is plain newline-terminated text with no escaping:
//
//	version: 0.1.4
//	v2:<true|false>,v3:<true|false>
//	<variant name>
//	<v1 digest payload>
//	[<v2/v3 digest payload>]   (present when either v2 or v3 is enabled)
//	...
//
// A line is a variant name line exactly when it contains the APK marker
// segment; every other line is a digest payload for the current variant.
package transfer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cafebazaar/bundlesigner/internal/apkset"
	"github.com/cafebazaar/bundlesigner/internal/models"
)

// FormatVersion is written into the header of every transfer file
const FormatVersion = "0.1.4"

// Group is the record group for one APK variant: its correlation name, its
// v1 digest payload and, for v2/v3-enabled runs, the v2/v3 digest payload.
type Group struct {
	Name string
	V1   string
	V2V3 string
}

func formatErr(format string, args ...interface{}) error {
	return &models.ToolError{
		Type: models.ErrTransferFormat,
		Err:  fmt.Errorf(format, args...),
	}
}

// Writer emits a transfer file incrementally. The header is written up
// front; record groups are appended one at a time, across however many APK
// Set passes the caller drives. Variant names must be unique for the whole
// file: the name is the correlation key at read time, so a duplicate would
// silently shadow an earlier record.
type Writer struct {
	w     io.Writer
	flags models.SchemeFlags
	seen  map[string]struct{}
}

// NewWriter writes the header and flags lines and returns a Writer ready to
// append record groups
func NewWriter(w io.Writer, flags models.SchemeFlags) (*Writer, error) {
	if _, err := fmt.Fprintf(w, "version: %s\n", FormatVersion); err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(w, "v2:%t,v3:%t\n", flags.V2, flags.V3); err != nil {
		return nil, err
	}
	return &Writer{
		w:     w,
		flags: flags,
		seen:  make(map[string]struct{}),
	}, nil
}

// Flags returns the scheme flags the writer was created with
func (w *Writer) Flags() models.SchemeFlags {
	return w.flags
}

// Append writes one variant's record group
func (w *Writer) Append(g Group) error {
	if !strings.Contains(g.Name, apkset.Marker) {
		return formatErr("variant name %q lacks the %s marker and would not parse as a name line", g.Name, apkset.Marker)
	}
	if _, dup := w.seen[g.Name]; dup {
		return formatErr("duplicate variant name %q: names must be unique across both APK Sets", g.Name)
	}
	if err := checkPayload(g.V1, g.Name, "v1"); err != nil {
		return err
	}
	if w.flags.NeedsV2V3() {
		if err := checkPayload(g.V2V3, g.Name, "v2/v3"); err != nil {
			return err
		}
	} else if g.V2V3 != "" {
		return formatErr("variant %q carries a v2/v3 digest but neither scheme is enabled", g.Name)
	}

	lines := g.Name + "\n" + g.V1 + "\n"
	if w.flags.NeedsV2V3() {
		lines += g.V2V3 + "\n"
	}
	if _, err := io.WriteString(w.w, lines); err != nil {
		return err
	}
	w.seen[g.Name] = struct{}{}
	return nil
}

func checkPayload(payload, name, kind string) error {
	if payload == "" {
		return formatErr("variant %q has an empty %s digest payload", name, kind)
	}
	if strings.ContainsAny(payload, "\n\r") {
		return formatErr("variant %q has a multi-line %s digest payload", name, kind)
	}
	if strings.Contains(payload, apkset.Marker) {
		return formatErr("variant %q %s digest payload contains the %s marker and would parse as a name line", name, kind, apkset.Marker)
	}
	return nil
}

// File is a fully parsed transfer file
type File struct {
	Version string
	Flags   models.SchemeFlags
	Groups  []Group

	byName map[string]Group
}

// Lookup returns the record group for a variant name
func (f *File) Lookup(name string) (Group, bool) {
	g, ok := f.byName[name]
	return g, ok
}

// parser states for the record-group section
type parseState int

const (
	expectName parseState = iota
	expectV1Digest
	expectV2V3Digest
)

// Parse reads a transfer file. The reader is a small state machine: after the
// two header lines it expects a name line, then exactly one v1 digest line,
// then (only when v2 or v3 is flagged) exactly one v2/v3 digest line, and so
// on until EOF. EOF in the middle of a group, a name line where a digest was
// expected, a digest line before the first name, or a duplicate variant name
// is a malformed-transfer-file error.
func Parse(r io.Reader) (*File, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	version, err := parseHeader(scanner)
	if err != nil {
		return nil, err
	}
	flags, err := parseFlags(scanner)
	if err != nil {
		return nil, err
	}

	f := &File{
		Version: version,
		Flags:   flags,
		byName:  make(map[string]Group),
	}

	state := expectName
	var current Group
	lineNo := 2

	for scanner.Scan() {
		line := scanner.Text()
		lineNo++
		isName := strings.Contains(line, apkset.Marker)

		switch state {
		case expectName:
			if !isName {
				return nil, formatErr("line %d: digest payload %q where a variant name was expected", lineNo, line)
			}
			if _, dup := f.byName[line]; dup {
				return nil, formatErr("line %d: duplicate variant name %q", lineNo, line)
			}
			current = Group{Name: line}
			state = expectV1Digest

		case expectV1Digest:
			if isName {
				return nil, formatErr("line %d: variant %s is missing its v1 digest line", lineNo, current.Name)
			}
			current.V1 = line
			if flags.NeedsV2V3() {
				state = expectV2V3Digest
			} else {
				f.add(current)
				state = expectName
			}

		case expectV2V3Digest:
			if isName {
				return nil, formatErr("line %d: variant %s is missing its v2/v3 digest line", lineNo, current.Name)
			}
			current.V2V3 = line
			f.add(current)
			state = expectName
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transfer file: %w", err)
	}

	if state != expectName {
		return nil, formatErr("unexpected end of file: variant %s has an incomplete record group", current.Name)
	}
	if len(f.Groups) == 0 {
		return nil, formatErr("transfer file contains no variant record groups")
	}

	return f, nil
}

func (f *File) add(g Group) {
	f.Groups = append(f.Groups, g)
	f.byName[g.Name] = g
}

// ParseFile opens and parses a transfer file from disk
func ParseFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transfer file: %w", err)
	}
	defer fh.Close()
	return Parse(fh)
}

func parseHeader(scanner *bufio.Scanner) (string, error) {
	if !scanner.Scan() {
		return "", formatErr("empty transfer file")
	}
	line := scanner.Text()
	version, ok := strings.CutPrefix(line, "version: ")
	if !ok {
		return "", formatErr("malformed version header: %q", line)
	}
	return version, nil
}

// parseFlags parses the "v2:<bool>,v3:<bool>" line. The two flags are
// independent fields; neither is derived from the other.
func parseFlags(scanner *bufio.Scanner) (models.SchemeFlags, error) {
	var flags models.SchemeFlags
	if !scanner.Scan() {
		return flags, formatErr("transfer file is missing the scheme flags line")
	}
	line := scanner.Text()

	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return flags, formatErr("malformed scheme flags line: %q", line)
	}
	v2, err := parseBoolField(parts[0], "v2")
	if err != nil {
		return flags, err
	}
	v3, err := parseBoolField(parts[1], "v3")
	if err != nil {
		return flags, err
	}
	flags.V2 = v2
	flags.V3 = v3
	return flags, nil
}

func parseBoolField(field, key string) (bool, error) {
	value, ok := strings.CutPrefix(strings.TrimSpace(field), key+":")
	if !ok {
		return false, formatErr("scheme flags line is missing the %s field", key)
	}
	switch strings.TrimSpace(value) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, formatErr("scheme flag %s has non-boolean value %q", key, value)
	}
}
