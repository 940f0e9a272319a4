// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package card

import (
	"errors"
	"testing"

	"github.com/zintix-labs/tablewatch/sdk/codec"
)

func TestResolveBasic(t *testing.T) {
	cases := []struct {
		dragon, tiger int
		want          codec.Winner
	}{
		{13, 10, codec.Dragon},
		{2, 11, codec.Tiger},
		{7, 7, codec.Tie},
		{1, 13, codec.Tiger},
	}
	for _, c := range cases {
		got, err := Resolve(CardFace{Rank: c.dragon}, CardFace{Rank: c.tiger})
		if err != nil {
			t.Fatalf("(%d,%d): unexpected error: %v", c.dragon, c.tiger, err)
		}
		if got != c.want {
			t.Fatalf("(%d,%d): got %v, want %v", c.dragon, c.tiger, got, c.want)
		}
	}
}

func TestResolveSwapSymmetry(t *testing.T) {
	for d := 1; d <= 13; d++ {
		for g := 1; g <= 13; g++ {
			a, err := Resolve(CardFace{Rank: d}, CardFace{Rank: g})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			b, err := Resolve(CardFace{Rank: g}, CardFace{Rank: d})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			switch a {
			case codec.Dragon:
				if b != codec.Tiger {
					t.Fatalf("(%d,%d): swap broke symmetry: %v/%v", d, g, a, b)
				}
			case codec.Tiger:
				if b != codec.Dragon {
					t.Fatalf("(%d,%d): swap broke symmetry: %v/%v", d, g, a, b)
				}
			case codec.Tie:
				if b != codec.Tie {
					t.Fatalf("(%d,%d): tie must be symmetric, got %v", d, g, b)
				}
			}
		}
	}
}

func TestResolveInsufficientData(t *testing.T) {
	_, err := Resolve(Unknown(), CardFace{Rank: 5})
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	_, err = Resolve(CardFace{Rank: 5}, Unknown())
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestCannedPairsResolveToTheirWinner(t *testing.T) {
	for _, w := range []codec.Winner{codec.Dragon, codec.Tiger, codec.Tie} {
		d, g := CannedPair(w)
		got, err := Resolve(d, g)
		if err != nil {
			t.Fatalf("%v: unexpected error: %v", w, err)
		}
		if got != w {
			t.Fatalf("%v: canned pair resolves to %v", w, got)
		}
	}
}

func TestCannedPairUnknownWinner(t *testing.T) {
	d, g := CannedPair(codec.Unknown)
	if d.Known() || g.Known() {
		t.Fatalf("unknown winner must yield unknown faces")
	}
}

func TestWireFormat(t *testing.T) {
	if got := (CardFace{Rank: 7, Suit: "h"}).Wire(); got != "7|h" {
		t.Fatalf("got %q, want 7|h", got)
	}
	if got := Unknown().Wire(); got != "0|0" {
		t.Fatalf("got %q, want 0|0", got)
	}
	if got := (CardFace{Rank: 4}).Wire(); got != "4|0" {
		t.Fatalf("missing suit must render as 0, got %q", got)
	}
}

func TestParse(t *testing.T) {
	c, err := Parse("12|d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Rank != 12 || c.Suit != "d" {
		t.Fatalf("unexpected card: %+v", c)
	}

	u, err := Parse("0|0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Known() {
		t.Fatalf("0|0 must parse as unknown")
	}

	for _, bad := range []string{"", "7", "14|h", "-1|h", "x|h"} {
		if _, err := Parse(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
