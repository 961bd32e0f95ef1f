package reader

import "os"

// extractText reads plain text and markdown files as-is.
func extractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
