//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Process cleans and chunks a conversion directory.
func Process(dir string) error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "process", dir)
}

// Generate writes cards.tsv for a processed directory using the
// configured model backend.
func Generate(dir string) error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "generate", dir)
}
