//go:build !vips

package main

import (
	"fmt"

	docintake "github.com/Skryldev/doc-intake"
	"github.com/Skryldev/doc-intake/config"
)

func installCodec(cfg config.Config, _ *docintake.Transformer) (func(), error) {
	if cfg.Transform.Backend == "vips" {
		return nil, fmt.Errorf("CODEC_BACKEND=vips needs a binary built with -tags vips")
	}
	return func() {}, nil
}
