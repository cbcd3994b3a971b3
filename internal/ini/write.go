package ini

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const continuationIndent = "    "

// Write renders doc in canonical form: one blank line between sections,
// "key: value" entries and four-space continuation lines. Blank lines inside
// a value are written empty. Values that would
// not survive a round trip through Parse are rejected.
func Write(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)
	for i, sec := range doc.Sections() {
		if i > 0 {
			if _, err := bw.WriteString("\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(bw, "[%s]\n", sec.Name); err != nil {
			return err
		}
		for _, entry := range sec.Entries() {
			if err := checkValue(sec.Name, entry); err != nil {
				return err
			}
			lines := strings.Split(entry.Value, "\n")
			if _, err := fmt.Fprintf(bw, "%s: %s\n", entry.Key, lines[0]); err != nil {
				return err
			}
			for _, cont := range lines[1:] {
				if cont != "" {
					cont = continuationIndent + cont
				}
				if _, err := bw.WriteString(cont + "\n"); err != nil {
					return err
				}
			}
		}
	}
	return bw.Flush()
}

func checkValue(section string, entry Entry) error {
	lines := strings.Split(entry.Value, "\n")
	for i, line := range lines {
		if line != strings.TrimSpace(line) {
			return fmt.Errorf("[%s] %s: value has surrounding whitespace", section, entry.Key)
		}
		// Inner blank lines survive a re-parse; a trailing one does not.
		if i > 0 && line == "" && i == len(lines)-1 {
			return fmt.Errorf("[%s] %s: value ends with a blank line", section, entry.Key)
		}
		if i > 0 && line != "" && (line[0] == '#' || line[0] == ';') {
			return fmt.Errorf("[%s] %s: continuation line %d cannot be represented", section, entry.Key, i)
		}
		if inlineCommentIndex(line) >= 0 {
			return fmt.Errorf("[%s] %s: value contains an inline comment marker", section, entry.Key)
		}
	}
	return nil
}
