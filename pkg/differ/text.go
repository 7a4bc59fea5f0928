package differ

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sourcegraph/go-diff/diff"

	"github.com/agentstation/redpush/pkg/errors"
)

// Stats counts the lines of a unified diff.
type Stats struct {
	Hunks   int `json:"hunks" yaml:"hunks"`
	Added   int `json:"added" yaml:"added"`
	Changed int `json:"changed" yaml:"changed"`
	Deleted int `json:"deleted" yaml:"deleted"`
}

// String renders the stats the way diffstat does.
func (s Stats) String() string {
	return fmt.Sprintf("%d hunks, %d insertions(+), %d deletions(-), %d changed",
		s.Hunks, s.Added, s.Deleted, s.Changed)
}

// Stat parses a unified diff produced by Unified. An empty diff has zero stats.
func Stat(unified string) (Stats, error) {
	if strings.TrimSpace(unified) == "" {
		return Stats{}, nil
	}
	fd, err := diff.ParseFileDiff([]byte(unified))
	if err != nil {
		return Stats{}, errors.WrapParse("diff", "", err)
	}
	st := fd.Stat()
	return Stats{
		Hunks:   len(fd.Hunks),
		Added:   int(st.Added),
		Changed: int(st.Changed),
		Deleted: int(st.Deleted),
	}, nil
}

// Colorize writes unified to w, coloring additions green, deletions red
// and hunk headers cyan. With noColor the text is written unchanged.
func Colorize(w io.Writer, unified string, noColor bool) error {
	if noColor {
		_, err := io.WriteString(w, unified)
		return err
	}

	header := color.New(color.Bold)
	hunk := color.New(color.FgCyan)
	added := color.New(color.FgGreen)
	deleted := color.New(color.FgRed)
	for _, c := range []*color.Color{header, hunk, added, deleted} {
		c.EnableColor()
	}

	scanner := bufio.NewScanner(strings.NewReader(unified))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		var err error
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			_, err = header.Fprintln(w, line)
		case strings.HasPrefix(line, "@@"):
			_, err = hunk.Fprintln(w, line)
		case strings.HasPrefix(line, "+"):
			_, err = added.Fprintln(w, line)
		case strings.HasPrefix(line, "-"):
			_, err = deleted.Fprintln(w, line)
		default:
			_, err = fmt.Fprintln(w, line)
		}
		if err != nil {
			return err
		}
	}
	return scanner.Err()
}
