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

package codec

import "testing"

func TestDefaultTableNumericCodes(t *testing.T) {
	tbl := DefaultTable()
	cases := map[string]Winner{
		"10": Dragon,
		"20": Tie,
		"30": Tiger,
	}
	for code, want := range cases {
		got := tbl.ToCanonical(code)
		if got.Winner != want {
			t.Fatalf("code %q: got %v, want %v", code, got.Winner, want)
		}
		if got.Aux != AuxNone {
			t.Fatalf("code %q: aux must be none, got %v", code, got.Aux)
		}
	}
}

func TestDefaultTableLetterCodes(t *testing.T) {
	tbl := DefaultTable()
	if tbl.ToCanonical("a").Winner != Dragon ||
		tbl.ToCanonical("b").Winner != Tiger ||
		tbl.ToCanonical("c").Winner != Tie {
		t.Fatalf("letter codes must map a=dragon, b=tiger, c=tie")
	}
	// 兩套碼順序不同：數字碼第二位是和局，字母碼第二位是虎勝。
	if tbl.ToCanonical("20").Winner != Tie || tbl.ToCanonical("b").Winner != Tiger {
		t.Fatalf("numeric and letter code orders must not be conflated")
	}
}

func TestUnknownCodeIsSentinelNotError(t *testing.T) {
	tbl := DefaultTable()
	got := tbl.ToCanonical("99")
	if got.Winner != Unknown {
		t.Fatalf("unmapped code must yield Unknown, got %v", got.Winner)
	}
	if tbl.Known("99") {
		t.Fatalf("Known must be false for unmapped code")
	}
}

func TestRoundTripWinnerClassification(t *testing.T) {
	tbl := DefaultTable()
	for _, w := range []Winner{Dragon, Tiger, Tie} {
		raw := tbl.ToRawDefault(w)
		if raw == "" {
			t.Fatalf("winner %v: missing raw default", w)
		}
		if back := tbl.ToCanonical(raw); back.Winner != w {
			t.Fatalf("winner %v: round trip via %q yielded %v", w, raw, back.Winner)
		}
	}
}

func TestCustomTableFillsRawDefaults(t *testing.T) {
	tbl := NewTable(map[string]Winner{"x": Dragon, "y": Tiger}, nil)
	if raw := tbl.ToRawDefault(Dragon); raw != "x" {
		t.Fatalf("expected raw default from mapping, got %q", raw)
	}
	if raw := tbl.ToRawDefault(Tie); raw != "" {
		t.Fatalf("unmapped winner must yield empty raw code, got %q", raw)
	}
}

func TestWinnerString(t *testing.T) {
	if Dragon.String() != "dragon" || Tiger.String() != "tiger" ||
		Tie.String() != "tie" || Unknown.String() != "unknown" {
		t.Fatalf("unexpected winner names")
	}
	if Winner(200).String() != "unknown" {
		t.Fatalf("out-of-range winner must render as unknown")
	}
}
