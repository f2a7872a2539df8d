package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/foodkart-checkout/internal/domain/coupon"
)

const maxLineBytes = 1 << 20

// Record is a coupon and where it was read from.
type Record struct {
	Coupon coupon.Coupon
	File   string
	Line   int
}

// LineError reports a line that could not be imported.
type LineError struct {
	File string
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// FileResult holds the coupons read from a single file.
type FileResult struct {
	Path    string
	Records []Record
	// Invalid lists lines that failed to decode or validate. They are
	// skipped, not fatal.
	Invalid []*LineError
}

// ReadFiles reads every file concurrently. Results keep the order of paths.
func ReadFiles(ctx context.Context, paths []string) ([]FileResult, error) {
	results := make([]FileResult, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			res, err := ReadFile(ctx, path)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ReadFile reads one JSON-lines file, gunzipping it when the name ends in
// ".gz". Blank lines are ignored.
func ReadFile(ctx context.Context, path string) (FileResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileResult{}, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return FileResult{}, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	res, err := ReadLines(ctx, path, r)
	if err != nil {
		return FileResult{}, err
	}
	return res, nil
}

// ReadLines decodes one coupon per line of r. name is used in records and
// errors.
func ReadLines(ctx context.Context, name string, r io.Reader) (FileResult, error) {
	res := FileResult{Path: name}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return FileResult{}, err
		}
		line++

		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		c, err := DecodeCoupon(jx.DecodeBytes(data))
		if err != nil {
			res.Invalid = append(res.Invalid, &LineError{File: name, Line: line, Err: err})
			continue
		}
		res.Records = append(res.Records, Record{Coupon: c, File: name, Line: line})
	}
	if err := scanner.Err(); err != nil {
		return FileResult{}, errors.Wrapf(err, "scan %s", name)
	}
	return res, nil
}
