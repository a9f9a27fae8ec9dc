package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/brightline-qa/qms-cli/internal/model"
	"github.com/brightline-qa/qms-cli/internal/store"
)

const dateLayout = "2006-01-02"

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	switch cfg.Store.Driver {
	case "sqlite":
		st, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// parseRange builds a date range from --from/--to flag values in
// YYYY-MM-DD form. The upper bound is inclusive of the named day.
func parseRange(from, to string) (store.DateRange, error) {
	var rng store.DateRange
	if from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			return rng, eris.Wrapf(err, "parse --from %q", from)
		}
		rng.From = &t
	}
	if to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return rng, eris.Wrapf(err, "parse --to %q", to)
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		rng.To = &end
	}
	return rng, nil
}

// resolveTemplate accepts either a template code or an ID.
func resolveTemplate(ctx context.Context, st store.Store, ref string) (*model.Template, error) {
	tpl, err := st.GetTemplateByCode(ctx, ref)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		tpl, err = st.GetTemplate(ctx, ref)
		if err != nil {
			return nil, err
		}
	}
	if tpl == nil {
		return nil, eris.Errorf("template not found: %s", ref)
	}
	return tpl, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal output")
	}
	fmt.Println(string(out))
	return nil
}
