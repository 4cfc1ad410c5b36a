package main

import (
	// Import all provider modules to trigger their init() functions
	_ "github.com/fedsearch/fedsearch/pkg/providers/local"
	_ "github.com/fedsearch/fedsearch/pkg/providers/remotewp"
)
