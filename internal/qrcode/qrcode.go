// Package qrcode renders distribution URLs as QR codes for the terminal and
// for HTML clients.
package qrcode

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	ErrEmptyContent = errors.New("content cannot be empty")
	ErrGenerate     = errors.New("failed to generate QR code")
)

const defaultSize = 256

// Terminal returns the QR code drawn with Unicode half blocks.
func Terminal(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}
	q, err := skipqrcode.New(content, skipqrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerate, err)
	}
	return q.ToSmallString(false), nil
}

// DataURI returns a base64 PNG data URI usable as an <img> source.
// A non-positive size uses 256 pixels.
func DataURI(content string, size int) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}
	if size <= 0 {
		size = defaultSize
	}
	png, err := skipqrcode.Encode(content, skipqrcode.Medium, size)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerate, err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
