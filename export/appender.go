package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"reportit/models"
	"reportit/storage"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Appender adds rows to one shared workbook kept in object storage.
// Appends are serialized so concurrent writers never drop a row.
type Appender struct {
	mu    sync.Mutex
	store storage.Store
	key   string
	loc   *time.Location
}

func NewAppender(store storage.Store, key string, loc *time.Location) *Appender {
	return &Appender{store: store, key: key, loc: loc}
}

func (a *Appender) open(ctx context.Context) (*excelize.File, error) {
	data, err := a.store.Get(ctx, a.key)
	if errors.Is(err, storage.ErrNotFound) {
		return newWorkbook()
	}
	if err != nil {
		return nil, err
	}
	return excelize.OpenReader(bytes.NewReader(data))
}

// Append writes r as the next row and returns its serial number.
func (a *Appender) Append(ctx context.Context, r models.Report) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := a.open(ctx)
	if err != nil {
		return 0, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return 0, err
	}
	next := len(rows) + 1
	serial := next - 1

	values := Row(r, a.loc)
	values[0] = fmt.Sprint(serial)
	if err := setRow(f, next, values); err != nil {
		return 0, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return 0, err
	}
	if err := a.store.Put(ctx, a.key, buf.Bytes(), ContentType); err != nil {
		return 0, fmt.Errorf("save workbook: %w", err)
	}
	return serial, nil
}
