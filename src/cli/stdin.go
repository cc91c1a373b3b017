package cli

import (
	"bufio"
	"io"
	"os"
	"strings"
)

var seenStdin = false // Used to track that we don't try to read stdin twice

// ReadLines reads a sequence of newline-delimited paths from the given reader.
// Paths may contain spaces, so unlike targets they are not split into words.
func ReadLines(r io.Reader) ([]string, error) {
	var ret []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if s := strings.TrimSpace(scanner.Text()); s != "" {
			ret = append(ret, s)
		}
	}
	return ret, scanner.Err()
}

// StdinStrings is a type used for flags; it accepts a slice of strings but also
// if it's a single - it reads its contents from stdin.
type StdinStrings []string

// Get reads stdin if needed and returns the contents of this slice.
func (s StdinStrings) Get() []string {
	if len(s) == 1 && s[0] == "-" {
		if seenStdin {
			log.Fatalf("Repeated - on command line; can't reread stdin.")
		}
		seenStdin = true
		lines, err := ReadLines(os.Stdin)
		if err != nil {
			log.Fatalf("Error reading stdin: %s", err)
		}
		return lines
	} else if ContainsString("-", s) {
		log.Fatalf("Cannot pass - to read stdin along with other arguments.")
	}
	return s
}

// ContainsString returns true if the given slice contains an individual string.
func ContainsString(needle string, haystack []string) bool {
	for _, straw := range haystack {
		if needle == straw {
			return true
		}
	}
	return false
}
