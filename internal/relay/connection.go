package relay

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const cursorPrefix = "arrayconnection:"

var ErrInvalidPagination = errors.New("invalid pagination arguments")

// Args are the standard connection arguments.
// Field names match the GraphQL argument names so resolvers can embed Args directly.
type Args struct {
	First  *int32
	Last   *int32
	After  *string
	Before *string
	Offset *int32
}

// Window is the slice of a result set selected by connection arguments.
type Window struct {
	Offset int // index of the first row to fetch
	Limit  int // number of rows to fetch

	hasPrevious bool
	hasNext     bool
}

// PageInfo describes the position of a page within the full result set.
type PageInfo struct {
	HasNextPage     bool
	HasPreviousPage bool
	StartCursor     *string
	EndCursor       *string
}

// Edge pairs a node with its cursor.
type Edge[T any] struct {
	Node   T
	Cursor string
}

// Connection is one page of nodes plus paging metadata.
type Connection[T any] struct {
	Edges      []Edge[T]
	PageInfo   PageInfo
	TotalCount int
}

// OffsetToCursor encodes a list offset as an opaque cursor.
func OffsetToCursor(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(cursorPrefix + strconv.Itoa(offset)))
}

// CursorToOffset decodes a cursor produced by OffsetToCursor.
func CursorToOffset(cursor string) (int, error) {
	raw, err := decodeBase64(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed cursor %q", ErrInvalidPagination, cursor)
	}
	s, ok := strings.CutPrefix(string(raw), cursorPrefix)
	if !ok {
		return 0, fmt.Errorf("%w: malformed cursor %q", ErrInvalidPagination, cursor)
	}
	offset, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed cursor %q", ErrInvalidPagination, cursor)
	}
	return offset, nil
}

// offsetWithDefault mirrors graphql-relay: unreadable cursors fall back to the default.
func offsetWithDefault(cursor *string, def int) int {
	if cursor == nil {
		return def
	}
	offset, err := CursorToOffset(*cursor)
	if err != nil {
		return def
	}
	return offset
}

// Paginate computes the window selected by args over a result set of total rows.
// When neither first nor last is given, first defaults to maxLimit; asking for
// more than maxLimit rows is an error.
func Paginate(args Args, total, maxLimit int) (Window, error) {
	var first, last *int
	if args.First != nil {
		v := int(*args.First)
		first = &v
	}
	if args.Last != nil {
		v := int(*args.Last)
		last = &v
	}

	if first != nil && *first < 0 {
		return Window{}, fmt.Errorf("%w: argument \"first\" must be a non-negative integer", ErrInvalidPagination)
	}
	if last != nil && *last < 0 {
		return Window{}, fmt.Errorf("%w: argument \"last\" must be a non-negative integer", ErrInvalidPagination)
	}

	if maxLimit > 0 {
		if first != nil && *first > maxLimit {
			return Window{}, fmt.Errorf("%w: requesting %d records exceeds the \"first\" limit of %d records", ErrInvalidPagination, *first, maxLimit)
		}
		if last != nil && *last > maxLimit {
			return Window{}, fmt.Errorf("%w: requesting %d records exceeds the \"last\" limit of %d records", ErrInvalidPagination, *last, maxLimit)
		}
		if first == nil && last == nil {
			v := maxLimit
			first = &v
		}
	}

	after := args.After
	if args.Offset != nil {
		offset := int(*args.Offset)
		if offset < 0 {
			return Window{}, fmt.Errorf("%w: argument \"offset\" must be a non-negative integer", ErrInvalidPagination)
		}
		if after != nil {
			offset += offsetWithDefault(after, -1) + 1
		}
		c := OffsetToCursor(offset - 1)
		after = &c
	}

	afterOffset := offsetWithDefault(after, -1)
	beforeOffset := offsetWithDefault(args.Before, total)

	start := max(afterOffset, -1) + 1
	end := min(beforeOffset, total)
	if first != nil {
		end = min(end, start+*first)
	}
	if last != nil {
		start = max(start, end-*last)
	}
	if end < start {
		end = start
	}

	lower := 0
	if after != nil {
		lower = afterOffset + 1
	}
	upper := total
	if args.Before != nil {
		upper = beforeOffset
	}

	return Window{
		Offset:      start,
		Limit:       end - start,
		hasPrevious: last != nil && start > lower,
		hasNext:     first != nil && end < upper,
	}, nil
}

// NewConnection builds a connection from the nodes fetched for window w.
func NewConnection[T any](w Window, nodes []T, total int) *Connection[T] {
	conn := &Connection[T]{
		Edges:      make([]Edge[T], 0, len(nodes)),
		TotalCount: total,
		PageInfo: PageInfo{
			HasPreviousPage: w.hasPrevious,
			HasNextPage:     w.hasNext,
		},
	}

	for i, n := range nodes {
		conn.Edges = append(conn.Edges, Edge[T]{
			Node:   n,
			Cursor: OffsetToCursor(w.Offset + i),
		})
	}

	if len(conn.Edges) > 0 {
		startCursor := conn.Edges[0].Cursor
		endCursor := conn.Edges[len(conn.Edges)-1].Cursor
		conn.PageInfo.StartCursor = &startCursor
		conn.PageInfo.EndCursor = &endCursor
	}

	return conn
}
