//go:build ort && cgo

package main

import (
	// Registers the onnxruntime backend.
	_ "github.com/tensorfuzz/domaininfer/pkg/executor/ort"
)
