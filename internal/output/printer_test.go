package output

import (
	"bytes"
	"strings"
	"testing"
)

func plain(quiet bool) (*Printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	p := NewPrinter(PrinterOptions{ColorMode: ColorNever, Quiet: quiet, Out: &out, Err: &errOut})
	return p, &out, &errOut
}

func TestParseColorMode(t *testing.T) {
	tests := []struct {
		input string
		want  ColorMode
	}{
		{"", ColorAuto},
		{"auto", ColorAuto},
		{"always", ColorAlways},
		{"never", ColorNever},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseColorMode(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseColorMode(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
	if _, err := ParseColorMode("rainbow"); err == nil {
		t.Error("expected error for invalid color mode")
	}
}

func TestResolveColors(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if !ResolveColors(ColorAlways, false) {
		t.Error("ColorAlways must win over NO_COLOR")
	}
	if ResolveColors(ColorAuto, true) {
		t.Error("NO_COLOR must disable auto colors")
	}
	if ResolveColors(ColorNever, true) {
		t.Error("ColorNever must disable colors")
	}
}

func TestResolveColors_DumbTerm(t *testing.T) {
	t.Setenv("TERM", "dumb")
	if ResolveColors(ColorAuto, true) {
		t.Error("TERM=dumb must disable auto colors")
	}
}

func TestPrinterPrefixes(t *testing.T) {
	p, out, errOut := plain(false)
	p.Success("Login successful!")
	p.Info("%d unread", 3)
	p.Warning("slow")
	p.Error("Session expired. Please log in again.")

	if got := out.String(); got != "[OK] Login successful!\n3 unread\n" {
		t.Errorf("stdout = %q", got)
	}
	if got := errOut.String(); got != "[WARN] slow\n[ERROR] Session expired. Please log in again.\n" {
		t.Errorf("stderr = %q", got)
	}
}

func TestPrinterQuiet(t *testing.T) {
	p, out, errOut := plain(true)
	p.Success("hidden")
	p.Info("hidden")
	p.Header("hidden")
	p.Field("Balance", "₦0.00")
	p.Error("shown")
	if out.Len() != 0 {
		t.Errorf("quiet printer wrote %q", out.String())
	}
	if !strings.Contains(errOut.String(), "shown") {
		t.Error("errors must be printed in quiet mode")
	}
}

func TestHeaderAndField(t *testing.T) {
	p, out, _ := plain(false)
	p.Header("Wallet")
	p.Field("Balance", "₦1,500.00")
	want := "\nWallet\n------\n  Balance:         ₦1,500.00\n"
	if out.String() != want {
		t.Errorf("got %q, want %q", out.String(), want)
	}
}

func TestSignedAndBadgeWithoutColors(t *testing.T) {
	p, _, _ := plain(false)
	if got := p.Signed("+", "₦10.00"); got != "+₦10.00" {
		t.Errorf("Signed = %q", got)
	}
	if got := p.Badge("unread"); got != "[unread]" {
		t.Errorf("Badge = %q", got)
	}
	if p.Bold("x") != "x" || p.Dim("x") != "x" {
		t.Error("plain printer must not style text")
	}
}

func TestNavigator(t *testing.T) {
	p, out, _ := plain(false)
	nav := p.Navigator("/login")
	nav("/login")
	nav("/")
	nav("/portfolio")
	got := out.String()
	if !strings.Contains(got, "growthctl login") || !strings.Contains(got, "→ /portfolio") {
		t.Errorf("unexpected navigation output %q", got)
	}
	if strings.Count(got, "\n") != 2 {
		t.Errorf("home must print nothing, got %q", got)
	}
}

func TestTable(t *testing.T) {
	p, out, _ := plain(false)
	tbl := p.Table("ID", "TITLE", "PRICE")
	tbl.AddRow("1", "Lekki Gardens", "₦5,000.00")
	tbl.AddRow("2", "Epe Farms", "₦1,200.00")
	if tbl.Len() != 2 {
		t.Fatalf("Len = %d", tbl.Len())
	}
	if err := tbl.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}
	got := out.String()
	for _, want := range []string{"TITLE", "Lekki Gardens", "Epe Farms", "₦1,200.00"} {
		if !strings.Contains(got, want) {
			t.Errorf("table output missing %q:\n%s", want, got)
		}
	}

	q, qout, _ := plain(true)
	qt := q.Table("ID")
	qt.AddRow("1")
	_ = qt.Render()
	if qout.Len() != 0 {
		t.Error("quiet table must not render")
	}
}

func TestPrintHints(t *testing.T) {
	p, out, _ := plain(false)
	p.PrintHints("lands buy")
	if !strings.Contains(out.String(), "See also: growthctl portfolio, growthctl wallet balance") {
		t.Errorf("got %q", out.String())
	}
	out.Reset()
	p.PrintHints("version")
	if out.Len() != 0 {
		t.Errorf("no hints expected, got %q", out.String())
	}
}

func TestColorAlwaysStylesWithoutTerminal(t *testing.T) {
	var out, errOut bytes.Buffer
	p := NewPrinter(PrinterOptions{ColorMode: ColorAlways, Out: &out, Err: &errOut})
	p.Success("Purchase successful")
	got := out.String()
	if !strings.Contains(got, "✓ Purchase successful") || !strings.Contains(got, "\x1b[") {
		t.Errorf("expected a colored success line, got %q", got)
	}
	if badge := p.Badge("sold out"); !strings.Contains(badge, "●") || !strings.Contains(badge, "\x1b[") {
		t.Errorf("unexpected badge %q", badge)
	}
	if p.Signed("", "₦0.00") != "₦0.00" {
		t.Error("an unsigned amount must stay unstyled")
	}
}

func TestTablePadsShortRows(t *testing.T) {
	p, out, _ := plain(false)
	tbl := p.Table("ID", "STATUS", "MESSAGE")
	tbl.AddRow("n1", "[unread]")
	if err := tbl.Render(); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out.String(), "n1") || !strings.Contains(out.String(), "MESSAGE") {
		t.Errorf("unexpected table %q", out.String())
	}
}
