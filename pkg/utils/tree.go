package utils

import (
	"fmt"
	"io"
)

const (
	indentPrefix    = "    "
	entryPrefix     = "├── "
	lastEntryPrefix = "└── "
	verticalLine    = "│   "
)

// WriteTree renders a forest as box-drawing text, one line per node.
// label produces the text of a node; children lists its sub-entries in display order.
func WriteTree[T any](w io.Writer, roots []T, label func(T) string, children func(T) []T) error {
	for _, root := range roots {
		if _, err := fmt.Fprintln(w, label(root)); err != nil {
			return err
		}
		if err := writeTreeLevel(w, children(root), "", label, children); err != nil {
			return err
		}
	}
	return nil
}

func writeTreeLevel[T any](w io.Writer, entries []T, currentIndent string, label func(T) string, children func(T) []T) error {
	for i, entry := range entries {
		isLast := i == len(entries)-1

		connector := entryPrefix
		nextIndent := currentIndent + verticalLine
		if isLast {
			connector = lastEntryPrefix
			nextIndent = currentIndent + indentPrefix
		}

		if _, err := fmt.Fprintf(w, "%s%s%s\n", currentIndent, connector, label(entry)); err != nil {
			return err
		}
		if err := writeTreeLevel(w, children(entry), nextIndent, label, children); err != nil {
			return err
		}
	}
	return nil
}
