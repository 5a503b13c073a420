package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pthm/sqlcompose"
	"github.com/pthm/sqlcompose/internal/cli"
	"github.com/pthm/sqlcompose/internal/manifest"
	"github.com/pthm/sqlcompose/pkg/dialect"
	"github.com/pthm/sqlcompose/pkg/search"
)

// target is a manifest model bound to a dialect.
type target struct {
	dialect  dialect.Dialect
	model    *sqlcompose.Model
	registry *search.Registry
}

// loadTarget resolves the manifest, the dialect and the named model.
func loadTarget(name, driver string, opts ...sqlcompose.Option) (*target, error) {
	if name == "" {
		return nil, cli.GeneralError("a model is required (use --model)", nil)
	}

	d, err := dialect.Lookup(resolveString(driver, cfg.Database.Driver))
	if err != nil {
		return nil, cli.ConfigError("resolving dialect", err)
	}

	m, err := loadManifest()
	if err != nil {
		return nil, err
	}
	def, err := m.Model(name)
	if err != nil {
		return nil, cli.ManifestError("selecting model", err)
	}

	reg, err := def.Registry(cfg.Search.DefaultLimit)
	if err != nil {
		return nil, cli.ManifestError("building search registry", err)
	}

	opts = append([]sqlcompose.Option{sqlcompose.WithDialect(d), sqlcompose.WithLogger(log)}, opts...)
	model, err := def.Build(opts...)
	if err != nil {
		return nil, cli.ManifestError(fmt.Sprintf("building model %q", name), err)
	}

	log.Debug("model loaded",
		slog.String("model", name),
		slog.String("dialect", d.Name()),
		slog.Any("params", reg.Names()))
	return &target{dialect: d, model: model, registry: reg}, nil
}

func loadManifest() (*manifest.Manifest, error) {
	path := resolveString(modelsArg, cfg.Models)
	m, err := manifest.Load(path)
	if err != nil {
		return nil, cli.ManifestError("loading models", err)
	}
	return m, nil
}

// parseParams turns repeated key=value arguments into search parameters.
// A key given more than once collects its values into a list.
func parseParams(args []string) (search.Params, error) {
	params := make(search.Params, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q (want key=value)", arg)
		}
		switch prev := params[key].(type) {
		case nil:
			params[key] = value
		case string:
			params[key] = []string{prev, value}
		case []string:
			params[key] = append(prev, value)
		}
	}
	return params, nil
}
