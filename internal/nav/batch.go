package nav

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"codenav/internal/errors"
)

// MaxBatchSize bounds how many locators one batch call may carry.
const MaxBatchSize = 5

// batchConcurrency bounds how many operations run at once within a batch.
const batchConcurrency = 3

// DefinitionBatch resolves several definitions concurrently. Each locator
// gets its own result and trace; one failing locator does not abort the
// others.
func (o *Operations) DefinitionBatch(ctx context.Context, locs []SymbolLocator) ([]DefinitionResult, error) {
	if err := checkBatchSize(len(locs)); err != nil {
		return nil, err
	}

	results := make([]DefinitionResult, len(locs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, loc := range locs {
		g.Go(func() error {
			results[i] = o.Definition(ctx, loc)
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// ReferencesBatch runs several reference queries concurrently, all with
// the same options.
func (o *Operations) ReferencesBatch(ctx context.Context, locs []SymbolLocator, opts ReferenceOptions) ([]ReferencesResult, error) {
	if err := checkBatchSize(len(locs)); err != nil {
		return nil, err
	}

	results := make([]ReferencesResult, len(locs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, loc := range locs {
		g.Go(func() error {
			results[i] = o.References(ctx, loc, opts)
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// CallHierarchyBatch runs several hierarchy queries concurrently.
func (o *Operations) CallHierarchyBatch(ctx context.Context, locs []SymbolLocator) ([]CallHierarchyResult, error) {
	if err := checkBatchSize(len(locs)); err != nil {
		return nil, err
	}

	results := make([]CallHierarchyResult, len(locs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, loc := range locs {
		g.Go(func() error {
			results[i] = o.CallHierarchy(ctx, loc)
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func checkBatchSize(n int) error {
	if n == 0 {
		return errors.New(errors.ConfigInvalid, "batch contains no locators", nil)
	}
	if n > MaxBatchSize {
		return errors.New(errors.ConfigInvalid,
			fmt.Sprintf("batch of %d exceeds the limit of %d locators", n, MaxBatchSize), nil)
	}
	return nil
}
