package services

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"unicode/utf16"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// fakeStore is an in-memory ProductStore with an enforced unique slug
type fakeStore struct {
	mu     sync.Mutex
	nextID uint
	slugs  map[string]uint
	insert []*models.CanonicalProduct

	// insertHook runs before each insert and may return an error or block
	insertHook func(ctx context.Context, call int, record *models.CanonicalProduct) error
	// findErr is returned by FindBySlug when set
	findErr error
	// findBlocks makes FindBySlug wait for its context
	findBlocks bool
	// hideSlugs makes FindBySlug miss existing slugs, simulating a race
	hideSlugs bool
}

var _ ProductStore = (*fakeStore)(nil)

func newFakeStore(existing ...string) *fakeStore {
	s := &fakeStore{slugs: make(map[string]uint)}
	for _, slug := range existing {
		s.nextID++
		s.slugs[slug] = s.nextID
	}
	return s
}

func (s *fakeStore) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	if s.findBlocks {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.hideSlugs {
		return nil, nil
	}
	if id, ok := s.slugs[slug]; ok {
		return &models.Product{ID: id, Slug: &slug}, nil
	}
	return nil, nil
}

func (s *fakeStore) InsertProduct(ctx context.Context, record *models.CanonicalProduct) (uint, error) {
	s.mu.Lock()
	call := len(s.insert) + 1
	copied := *record
	s.insert = append(s.insert, &copied)
	hook := s.insertHook
	s.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, call, record); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if record.Slug != nil {
		if _, taken := s.slugs[*record.Slug]; taken {
			return 0, repository.ErrDuplicateSlug
		}
	}
	s.nextID++
	if record.Slug != nil {
		s.slugs[*record.Slug] = s.nextID
	}
	return s.nextID, nil
}

func (s *fakeStore) insertCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.insert)
}

// mockPublisher records import events
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishProductImported(ctx context.Context, product models.ImportSuccess, jobID string) error {
	args := m.Called(ctx, product, jobID)
	return args.Error(0)
}

// mockCache records cache invalidations
type mockCache struct {
	mock.Mock
}

func (m *mockCache) InvalidateProductCaches(ctx context.Context) {
	m.Called(ctx)
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	return logrus.NewEntry(logger)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeXLSX(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	path := filepath.Join(t.TempDir(), "products.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

// writeXLS builds a minimal Excel 97-2003 workbook: one worksheet of shared
// strings inside a compound file with a single FAT sector.
func writeXLS(t *testing.T, rows [][]string) string {
	t.Helper()
	const (
		sectorSize = 512
		endOfChain = 0xFFFFFFFE
		freeSect   = 0xFFFFFFFF
		fatSect    = 0xFFFFFFFD
	)
	le := binary.LittleEndian

	record := func(buf *bytes.Buffer, id uint16, body []byte) {
		_ = binary.Write(buf, le, [2]uint16{id, uint16(len(body))})
		buf.Write(body)
	}
	xlString := func(buf *bytes.Buffer, s string) {
		units := utf16.Encode([]rune(s))
		buf.WriteByte(0x01) // uncompressed UTF-16
		_ = binary.Write(buf, le, units)
	}
	bof := func(kind uint16) []byte {
		body := new(bytes.Buffer)
		_ = binary.Write(body, le, [4]uint16{0x0600, kind, 0, 0})
		_ = binary.Write(body, le, [2]uint32{0, 0})
		return body.Bytes()
	}

	var sst []string
	index := map[string]uint32{}
	for _, row := range rows {
		for _, cell := range row {
			if _, ok := index[cell]; cell != "" && !ok {
				index[cell] = uint32(len(sst))
				sst = append(sst, cell)
			}
		}
	}

	sheetName := "Sheet1"
	sstBody := new(bytes.Buffer)
	_ = binary.Write(sstBody, le, [2]uint32{uint32(len(sst)), uint32(len(sst))})
	for _, s := range sst {
		_ = binary.Write(sstBody, le, uint16(len(utf16.Encode([]rune(s)))))
		xlString(sstBody, s)
	}

	// the boundsheet record points at the sheet substream, so size the
	// globals first
	globalsSize := 4 + 16 + 4 + (4 + 1 + 1 + 1 + 1 + 2*len(sheetName)) + 4 + sstBody.Len() + 4

	stream := new(bytes.Buffer)
	record(stream, 0x0809, bof(0x0005))
	sheetBody := new(bytes.Buffer)
	_ = binary.Write(sheetBody, le, uint32(globalsSize))
	sheetBody.Write([]byte{0, 0, byte(len(sheetName))})
	xlString(sheetBody, sheetName)
	record(stream, 0x0085, sheetBody.Bytes())
	record(stream, 0x00FC, sstBody.Bytes())
	record(stream, 0x000A, nil)
	require.Equal(t, globalsSize, stream.Len())

	record(stream, 0x0809, bof(0x0010))
	for r, row := range rows {
		if len(row) == 0 {
			continue
		}
		rowBody := new(bytes.Buffer)
		_ = binary.Write(rowBody, le, [6]uint16{uint16(r), 0, uint16(len(row)), 0x00FF, 0, 0})
		_ = binary.Write(rowBody, le, uint32(0x100))
		record(stream, 0x0208, rowBody.Bytes())
	}
	for r, row := range rows {
		for c, cell := range row {
			if cell == "" {
				continue
			}
			cellBody := new(bytes.Buffer)
			_ = binary.Write(cellBody, le, [3]uint16{uint16(r), uint16(c), 0})
			_ = binary.Write(cellBody, le, index[cell])
			record(stream, 0x00FD, cellBody.Bytes())
		}
	}
	record(stream, 0x000A, nil)

	// streams under 4096 bytes would live in the mini stream
	size := stream.Len()
	if size < 4096 {
		size = 4096
	}
	size = (size + sectorSize - 1) / sectorSize * sectorSize
	workbook := make([]byte, size)
	copy(workbook, stream.Bytes())
	bookSectors := size / sectorSize
	require.LessOrEqual(t, bookSectors+2, sectorSize/4, "fixture too large for one FAT sector")

	out := new(bytes.Buffer)

	// header
	_ = binary.Write(out, le, [2]uint32{0xE011CFD0, 0xE11AB1A1})
	out.Write(make([]byte, 16))
	_ = binary.Write(out, le, [6]uint16{0x003E, 0x0003, 0xFFFE, 9, 6, 0})
	out.Write(make([]byte, 8))
	_ = binary.Write(out, le, [9]uint32{1, 1, 0, 4096, endOfChain, 0, endOfChain, 0, 0})
	for i := 1; i < 109; i++ {
		_ = binary.Write(out, le, uint32(freeSect))
	}
	require.Equal(t, sectorSize, out.Len())

	// sector 0: FAT
	fat := make([]uint32, sectorSize/4)
	for i := range fat {
		fat[i] = freeSect
	}
	fat[0] = fatSect
	fat[1] = endOfChain
	for i := 0; i < bookSectors; i++ {
		fat[2+i] = uint32(3 + i)
	}
	fat[1+bookSectors] = endOfChain
	_ = binary.Write(out, le, fat)

	// sector 1: directory
	entry := func(name string, kind byte, child, start, size uint32) {
		var nameBuf [32]uint16
		units := utf16.Encode([]rune(name))
		copy(nameBuf[:], units)
		_ = binary.Write(out, le, nameBuf)
		_ = binary.Write(out, le, uint16(2*(len(units)+1)))
		out.Write([]byte{kind, 1})
		_ = binary.Write(out, le, [3]uint32{freeSect, freeSect, child})
		out.Write(make([]byte, 16+4+16))
		_ = binary.Write(out, le, [3]uint32{start, size, 0})
	}
	entry("Root Entry", 5, 1, endOfChain, 0)
	entry("Workbook", 2, freeSect, 2, uint32(size))
	out.Write(make([]byte, 2*128))

	// sectors 2..: workbook stream
	out.Write(workbook)

	path := filepath.Join(t.TempDir(), "products.xls")
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o644))
	return path
}

func strPtr(s string) *string {
	return &s
}

func canonical(row int, name, slug string) *models.CanonicalProduct {
	record := &models.CanonicalProduct{
		RowNumber: row,
		Name:      name,
		Category:  "Printers",
		Status:    models.ProductStatusActive,
		InStock:   true,
		Features:  []string{},
	}
	if slug != "" {
		record.Slug = strPtr(slug)
	}
	return record
}
