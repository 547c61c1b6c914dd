//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Convert sends one PDF (or a directory of PDFs) to the Marker service.
func Convert(pdf string) error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "convert", pdf)
}

// conversionDir returns outputs/conversions/<sha256> for a PDF.
func conversionDir(pdf string) (string, error) {
	f, err := os.Open(pdf)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", pdf, err)
	}
	return filepath.Join("outputs", "conversions", fmt.Sprintf("%x", h.Sum(nil))), nil
}
