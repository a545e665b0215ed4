// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package parallel

import (
	"runtime"
	"sort"
	"sync"
	"testing"
)

func TestNewDefaultsToGOMAXPROCS(t *testing.T) {
	for _, n := range []int{0, -3} {
		p := New(n)
		if got, want := p.Workers(), runtime.GOMAXPROCS(0); got != want {
			t.Errorf("New(%d).Workers() = %d, want %d", n, got, want)
		}
		p.Close()
	}
}

type band struct{ lo, hi int }

func collect(p *Pool, n, minRows int) []band {
	var mu sync.Mutex
	var out []band
	p.Bands(n, minRows, func(lo, hi int) {
		mu.Lock()
		out = append(out, band{lo, hi})
		mu.Unlock()
	})
	sort.Slice(out, func(i, j int) bool { return out[i].lo < out[j].lo })
	return out
}

func TestBandsCoverRange(t *testing.T) {
	p := New(4)
	defer p.Close()

	tests := []struct {
		n, minRows int
		bands      int
	}{
		{720, 16, 4},
		{480, 200, 2},
		{10, 16, 1},
		{3, 1, 3},
		{1, 0, 1},
	}
	for _, tt := range tests {
		got := collect(p, tt.n, tt.minRows)
		if len(got) != tt.bands {
			t.Errorf("Bands(%d, %d): %d bands, want %d", tt.n, tt.minRows, len(got), tt.bands)
			continue
		}
		next := 0
		for _, b := range got {
			if b.lo != next || b.hi <= b.lo {
				t.Errorf("Bands(%d, %d): band %v after row %d", tt.n, tt.minRows, b, next)
			}
			next = b.hi
		}
		if next != tt.n {
			t.Errorf("Bands(%d, %d) covered %d rows", tt.n, tt.minRows, next)
		}
	}
}

func TestBandsEmpty(t *testing.T) {
	p := New(2)
	defer p.Close()
	p.Bands(0, 8, func(lo, hi int) { t.Errorf("fn called for empty range %d..%d", lo, hi) })
}

func TestBandsAfterClose(t *testing.T) {
	p := New(4)
	p.Close()
	p.Close()

	got := collect(p, 100, 1)
	if len(got) != 1 || got[0] != (band{0, 100}) {
		t.Errorf("closed pool bands = %v, want one inline band", got)
	}
}

func TestBandsConcurrentCallers(t *testing.T) {
	p := New(3)
	defer p.Close()

	var wg sync.WaitGroup
	rows := make([][]int, 8)
	for c := range rows {
		rows[c] = make([]int, 300)
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Bands(len(rows[c]), 10, func(lo, hi int) {
				for y := lo; y < hi; y++ {
					rows[c][y]++
				}
			})
		}()
	}
	wg.Wait()

	for c, r := range rows {
		for y, v := range r {
			if v != 1 {
				t.Fatalf("caller %d row %d visited %d times", c, y, v)
			}
		}
	}
}

func TestBandsRacingClose(t *testing.T) {
	for round := 0; round < 50; round++ {
		p := New(4)
		var wg sync.WaitGroup
		rows := make([][]int, 6)
		for c := range rows {
			rows[c] = make([]int, 256)
			wg.Add(1)
			go func() {
				defer wg.Done()
				for pass := 0; pass < 4; pass++ {
					p.Bands(len(rows[c]), 8, func(lo, hi int) {
						for y := lo; y < hi; y++ {
							rows[c][y]++
						}
					})
				}
			}()
		}
		p.Close()
		wg.Wait()

		for c, r := range rows {
			for y, v := range r {
				if v != 4 {
					t.Fatalf("round %d: caller %d row %d visited %d times, want 4", round, c, y, v)
				}
			}
		}
	}
}
