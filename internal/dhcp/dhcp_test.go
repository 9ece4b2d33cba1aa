package dhcp

import (
	"context"
	"testing"

	"github.com/jbweber/croft/internal/broker"
)

type fakeInvoker struct {
	hosts    []string
	commands []string
	results  []*broker.Result
	errs     []error
}

func (f *fakeInvoker) Invoke(ctx context.Context, host string, cmd *broker.Command) (*broker.Result, error) {
	f.hosts = append(f.hosts, host)
	f.commands = append(f.commands, cmd.String())

	var res *broker.Result
	if len(f.results) > 0 {
		res = f.results[0]
		f.results = f.results[1:]
	}
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &broker.Result{}
	}
	return res, nil
}

func out(s string) *broker.Result { return &broker.Result{Stdout: s} }

func TestReservations(t *testing.T) {
	f := &fakeInvoker{results: []*broker.Result{out(
		`[{"IPAddress":"10.0.1.20","ClientId":"00-15-5d-0a-0b-0c","Name":"web-01","Description":""},` +
			`{"IPAddress":"10.0.1.21","ClientId":"00-15-5d-0a-0b-0d","Name":"web-02","Description":"spare"}]`,
	)}}
	g := New(f)

	list, err := g.Reservations(context.Background(), "dhcp-01", "10.0.1.0")
	if err != nil {
		t.Fatalf("Reservations() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 reservations, got %d", len(list))
	}
	if list[0].IPAddress != "10.0.1.20" || list[0].ClientID != "00-15-5d-0a-0b-0c" {
		t.Errorf("reservation = %+v", list[0])
	}
	if f.hosts[0] != "dhcp-01" {
		t.Errorf("Expected invoke on 'dhcp-01', got %q", f.hosts[0])
	}

	wantPrefix := `Get-DhcpServerv4Reservation -ScopeId '10.0.1.0' -ErrorAction SilentlyContinue | ForEach-Object`
	if got := f.commands[0]; len(got) < len(wantPrefix) || got[:len(wantPrefix)] != wantPrefix {
		t.Errorf("command = %q\nwant prefix %q", got, wantPrefix)
	}
}

func TestReservationsEmptyScope(t *testing.T) {
	f := &fakeInvoker{results: []*broker.Result{out("")}}
	g := New(f)

	list, err := g.Reservations(context.Background(), "dhcp-01", "10.0.1.0")
	if err != nil {
		t.Fatalf("Reservations() error = %v", err)
	}
	if list != nil {
		t.Errorf("Expected nil for an empty scope, got %v", list)
	}
}

func TestReservationsSingleObject(t *testing.T) {
	f := &fakeInvoker{results: []*broker.Result{out(
		`{"IPAddress":"10.0.1.20","ClientId":"00-15-5d-0a-0b-0c","Name":"web-01","Description":""}`,
	)}}
	g := New(f)

	list, err := g.Reservations(context.Background(), "dhcp-01", "10.0.1.0")
	if err != nil {
		t.Fatalf("Reservations() error = %v", err)
	}
	if len(list) != 1 || list[0].Name != "web-01" {
		t.Errorf("list = %+v", list)
	}
}

func TestAddReservation(t *testing.T) {
	f := &fakeInvoker{}
	g := New(f)

	err := g.AddReservation(context.Background(), "dhcp-01", "10.0.1.0", Reservation{
		IPAddress: "10.0.1.20",
		ClientID:  "00-15-5d-0a-0b-0c",
		Name:      "web-01",
	})
	if err != nil {
		t.Fatalf("AddReservation() error = %v", err)
	}

	want := `Add-DhcpServerv4Reservation -ScopeId '10.0.1.0' -IPAddress '10.0.1.20' -ClientId '00-15-5d-0a-0b-0c' -Name 'web-01' -ErrorAction Stop`
	if f.commands[0] != want {
		t.Errorf("command = %q\nwant      %q", f.commands[0], want)
	}
}

func TestRemoveReservation(t *testing.T) {
	f := &fakeInvoker{}
	g := New(f)

	if err := g.RemoveReservation(context.Background(), "dhcp-01", "10.0.1.0", "10.0.1.20"); err != nil {
		t.Fatalf("RemoveReservation() error = %v", err)
	}

	want := `Remove-DhcpServerv4Reservation -ScopeId '10.0.1.0' -IPAddress '10.0.1.20' -ErrorAction Stop`
	if f.commands[0] != want {
		t.Errorf("command = %q\nwant      %q", f.commands[0], want)
	}
}

func TestRouterOption(t *testing.T) {
	f := &fakeInvoker{results: []*broker.Result{
		out(`{"Value":"10.0.1.1"}`),
		out(""),
	}}
	g := New(f)
	ctx := context.Background()

	router, err := g.RouterOption(ctx, "dhcp-01", "10.0.1.20")
	if err != nil {
		t.Fatalf("RouterOption() error = %v", err)
	}
	if router != "10.0.1.1" {
		t.Errorf("router = %q, want '10.0.1.1'", router)
	}

	router, err = g.RouterOption(ctx, "dhcp-01", "10.0.1.21")
	if err != nil {
		t.Fatalf("RouterOption() error = %v", err)
	}
	if router != "" {
		t.Errorf("router = %q, want empty for unset option", router)
	}
}

func TestSetRouterOption(t *testing.T) {
	f := &fakeInvoker{}
	g := New(f)

	if err := g.SetRouterOption(context.Background(), "dhcp-01", "10.0.1.20", "10.0.1.1"); err != nil {
		t.Fatalf("SetRouterOption() error = %v", err)
	}

	want := `Set-DhcpServerv4OptionValue -ReservedIP '10.0.1.20' -Router '10.0.1.1' -ErrorAction Stop`
	if f.commands[0] != want {
		t.Errorf("command = %q\nwant      %q", f.commands[0], want)
	}
}

func TestScopeFailover(t *testing.T) {
	f := &fakeInvoker{results: []*broker.Result{
		out(`{"Name":"dhcp-01-dhcp-02"}`),
		out(""),
	}}
	g := New(f)
	ctx := context.Background()

	name, err := g.ScopeFailover(ctx, "dhcp-01", "10.0.1.0")
	if err != nil {
		t.Fatalf("ScopeFailover() error = %v", err)
	}
	if name != "dhcp-01-dhcp-02" {
		t.Errorf("name = %q", name)
	}

	name, err = g.ScopeFailover(ctx, "dhcp-01", "10.0.2.0")
	if err != nil {
		t.Fatalf("ScopeFailover() error = %v", err)
	}
	if name != "" {
		t.Errorf("name = %q, want empty for scope without a partner", name)
	}
}

func TestReplicateScope(t *testing.T) {
	f := &fakeInvoker{}
	g := New(f)

	if err := g.ReplicateScope(context.Background(), "dhcp-01", "10.0.1.0"); err != nil {
		t.Fatalf("ReplicateScope() error = %v", err)
	}

	want := `Invoke-DhcpServerv4FailoverReplication -ScopeId '10.0.1.0' -Force -ErrorAction Stop`
	if f.commands[0] != want {
		t.Errorf("command = %q\nwant      %q", f.commands[0], want)
	}
}
