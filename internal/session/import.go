// internal/session/import.go
package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/law-makers/pagefetch/pkg/models"
)

// Cookie import formats
const (
	FormatJSON     = "json"
	FormatNetscape = "netscape"
)

// ParseCookies reads cookies in the given format
func ParseCookies(r io.Reader, format string) ([]models.Cookie, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return parseJSON(r)
	case FormatNetscape:
		return parseNetscape(r)
	default:
		return nil, fmt.Errorf("unsupported cookie format: %s (use: json, netscape)", format)
	}
}

func parseJSON(r io.Reader) ([]models.Cookie, error) {
	var cookies []models.Cookie
	if err := json.NewDecoder(r).Decode(&cookies); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return cookies, nil
}

// parseNetscape reads the cookies.txt layout used by curl and browser
// extensions: domain, subdomains flag, path, secure, expiry, name, value.
func parseNetscape(r io.Reader) ([]models.Cookie, error) {
	var cookies []models.Cookie
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		httpOnly := false
		if strings.HasPrefix(line, "#HttpOnly_") {
			line = strings.TrimPrefix(line, "#HttpOnly_")
			httpOnly = true
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			fields = strings.Fields(line)
		}
		if len(fields) < 7 {
			continue
		}

		c := models.Cookie{
			Domain:   fields[0],
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			Name:     fields[5],
			Value:    fields[6],
			HTTPOnly: httpOnly,
		}
		if exp, err := strconv.ParseInt(fields[4], 10, 64); err == nil && exp > 0 {
			c.Expires = float64(exp)
		}
		cookies = append(cookies, c)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cookies, nil
}
