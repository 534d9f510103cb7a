package scmcache

import (
	"testing"
	"time"

	"github.com/rkooima/scm/internal/raster"
	"github.com/rkooima/scm/internal/scmfile"
)

type fakeSource struct {
	files map[int]*scmfile.File
}

func (s fakeSource) FileByIndex(i int) *scmfile.File { return s.files[i] }

func TestCacheGetPageMissReturnsFiller(t *testing.T) {
	target := &raster.Null{}
	cache, err := New(target, fakeSource{files: map[int]*scmfile.File{}}, 64, 4, 8, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cache.Close()

	slot, resident := cache.GetPage(0, 5, 1)
	if resident {
		t.Fatalf("expected a page with no backing file to never be resident")
	}
	if slot != 0 {
		t.Fatalf("expected filler slot 0, got %d", slot)
	}
}

func TestCacheCloseJoinsLoaders(t *testing.T) {
	target := &raster.Null{}
	cache, err := New(target, fakeSource{files: map[int]*scmfile.File{}}, 16, 4, 8, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan struct{})
	go func() {
		cache.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Close did not return — loader goroutines may not have joined")
	}
}
