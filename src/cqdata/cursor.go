package cqdata

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/colloquyhq/colloquy/src/oops"
)

/*
A keyset position over (created_at, id), descending. Offsets would shift
whenever somebody posts a newer entry; a keyset holds still no matter what
lands above it.
*/
type Cursor struct {
	CreatedAt time.Time
	ID        int
}

func (c Cursor) Encode() string {
	raw := fmt.Sprintf("%d:%d", c.CreatedAt.UnixMicro(), c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(s string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, oops.New(err, "bad cursor encoding")
	}

	micros, id, found := strings.Cut(string(raw), ":")
	if !found {
		return Cursor{}, oops.New(nil, "bad cursor format")
	}
	microsInt, err := strconv.ParseInt(micros, 10, 64)
	if err != nil {
		return Cursor{}, oops.New(err, "bad cursor timestamp")
	}
	idInt, err := strconv.Atoi(id)
	if err != nil {
		return Cursor{}, oops.New(err, "bad cursor id")
	}

	return Cursor{
		CreatedAt: time.UnixMicro(microsInt).UTC(),
		ID:        idInt,
	}, nil
}
