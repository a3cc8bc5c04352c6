//go:build vips

package main

import (
	docintake "github.com/Skryldev/doc-intake"
	"github.com/Skryldev/doc-intake/adapters/vips"
	"github.com/Skryldev/doc-intake/config"
)

func installCodec(cfg config.Config, tr *docintake.Transformer) (func(), error) {
	if cfg.Transform.Backend != "vips" {
		return func() {}, nil
	}
	d := vips.NewDecoder(vips.Config{})
	vips.Register(tr, d)
	return d.Shutdown, nil
}
