package dialogue

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// SelectFiles prints files as a numbered list to out and reads a comma
// separated selection from in. An empty answer selects every file.
func SelectFiles(in io.Reader, out io.Writer, files []string) ([]string, error) {
	if len(files) == 0 {
		return []string{}, nil
	}
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "\nAvailable BMP files:")
	for i, file := range files {
		fmt.Fprintf(out, "%d. %s\n", i+1, file)
	}

	fmt.Fprint(out, "\nSelect file(s) to check (e.g., 1,3,4), or press Enter for all: ")
	input, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return files, nil
	}

	var selected []string
	seen := make(map[int]bool)
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx, err := strconv.Atoi(part)
		if err != nil || idx < 1 || idx > len(files) {
			return nil, fmt.Errorf("invalid selection '%s': please enter numbers between 1 and %d, separated by commas", part, len(files))
		}
		if !seen[idx] {
			selected = append(selected, files[idx-1])
			seen[idx] = true
		}
	}
	return selected, nil
}
