package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// ChangedFile lists what a diff touched in one file, in new-file
// coordinates. Line numbers are 1-based as git prints them.
type ChangedFile struct {
	Path         string
	ChangedLines []int
	// RemovedAfter holds, for every pure deletion hunk, the line after which
	// lines were removed (0 for the top of the file).
	RemovedAfter []int
	Deleted      bool
}

// Regex for chunk header: @@ -oldStart,oldLen +newStart,newLen @@
// We only care about newStart and newLen (the + part)
var chunkHeader = regexp.MustCompile(`^@@ \-\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

// GetChangedFiles runs git diff in dir and returns the changed files with
// line numbers. Paths are relative to the repository root.
func GetChangedFiles(ctx context.Context, dir, baseRef string) ([]ChangedFile, error) {
	args := []string{"diff", "-U0", "--no-color", "--no-ext-diff"}
	if baseRef != "" {
		args = append(args, baseRef)
	}
	output, err := run(ctx, dir, args...)
	if err != nil {
		return nil, fmt.Errorf("git diff failed: %w", err)
	}

	return parseDiff(output)
}

// RepoRoot returns the top-level directory of the repository containing dir.
func RepoRoot(ctx context.Context, dir string) (string, error) {
	out, err := run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

func parseDiff(output []byte) ([]ChangedFile, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var changes []ChangedFile
	var currentFile *ChangedFile

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "diff --git") {
			// Start of a new file
			parts := strings.Fields(line)
			if len(parts) >= 4 {
				// a/path/to/file b/path/to/file
				// We want the b/ path (new version)
				path := strings.TrimPrefix(parts[3], "b/")

				if currentFile != nil {
					changes = append(changes, *currentFile)
				}
				currentFile = &ChangedFile{Path: path, ChangedLines: []int{}, RemovedAfter: []int{}}
			}
			continue
		}

		if currentFile == nil {
			continue
		}

		if strings.HasPrefix(line, "+++ ") {
			if strings.TrimSpace(strings.TrimPrefix(line, "+++ ")) == "/dev/null" {
				currentFile.Deleted = true
			}
			continue
		}

		if strings.HasPrefix(line, "@@") {
			matches := chunkHeader.FindStringSubmatch(line)
			if len(matches) < 2 {
				continue
			}
			startLine, _ := strconv.Atoi(matches[1])
			count := 1 // Default length is 1 if omitted
			if matches[2] != "" {
				count, _ = strconv.Atoi(matches[2])
			}

			// With count 0 no lines exist in the new file at this position;
			// startLine is the line the removed block followed.
			if count == 0 {
				currentFile.RemovedAfter = append(currentFile.RemovedAfter, startLine)
				continue
			}
			for i := 0; i < count; i++ {
				currentFile.ChangedLines = append(currentFile.ChangedLines, startLine+i)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read diff: %w", err)
	}

	if currentFile != nil {
		changes = append(changes, *currentFile)
	}

	return changes, nil
}
