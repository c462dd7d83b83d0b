package demo

import (
	"context"
	"time"

	"github.com/chenyanchen/modreg"
	"github.com/chenyanchen/modreg/manifest"
)

// Catalog returns the manifest names of the demo modules.
func Catalog() *manifest.Catalog {
	c := manifest.NewCatalog()
	must(manifest.AddType[*Settings](c, "settings"))
	must(manifest.AddType[Clock](c, "clock"))
	must(manifest.AddType[*SystemClock](c, "system-clock"))
	must(manifest.AddType[Store](c, "store"))
	must(manifest.AddType[*MemoryStore](c, "memory-store"))
	must(manifest.AddType[*Cache](c, "cache"))
	must(manifest.AddType[*Metrics](c, "metrics"))
	must(manifest.AddType[*Service](c, "service"))
	must(manifest.AddType[*Ping](c, "ping"))
	must(manifest.AddType[*Pong](c, "pong"))
	return c
}

// Factory binds the demo interfaces to their default implementations.
func Factory() *modreg.ConstructorFactory {
	f := modreg.NewFactory()
	modreg.MustProvide(f, func(context.Context) (*Settings, error) {
		return &Settings{Name: "demo", CacheTTL: time.Minute}, nil
	})
	modreg.MustProvide(f, func(context.Context) (Clock, error) {
		return &SystemClock{}, nil
	})
	modreg.MustProvide(f, func(context.Context) (Store, error) {
		return &MemoryStore{}, nil
	})
	return f
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
