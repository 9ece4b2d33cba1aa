// Package dns manages address records on Windows DNS servers. All
// commands run on the name server itself through the execution broker,
// so the server only needs to be reachable like any other managed
// host.
package dns

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/jbweber/croft/internal/broker"
)

// Invoker executes one command against one host. Satisfied by
// *broker.ExecutionContext.
type Invoker interface {
	Invoke(ctx context.Context, host string, cmd *broker.Command) (*broker.Result, error)
}

// Record is one resource record of a name in a zone.
type Record struct {
	HostName   string `json:"HostName"`
	RecordType string `json:"RecordType"`
	Data       string `json:"Data"`
}

// Gateway issues DNS server operations.
type Gateway struct {
	exec Invoker
}

// New returns a Gateway executing through exec.
func New(exec Invoker) *Gateway {
	return &Gateway{exec: exec}
}

// Records lists the records of one name and type in a zone. Returns
// nil when the name has no records of that type.
func (g *Gateway) Records(ctx context.Context, server, zone, name, recordType string) ([]Record, error) {
	cmd := broker.New("Get-DnsServerResourceRecord").
		Param("ZoneName", zone).
		Param("Name", name).
		Param("RRType", recordType).
		Param("ErrorAction", broker.Literal("SilentlyContinue")).
		Project("HostName=[string]$_.HostName",
			"RecordType=[string]$_.RecordType",
			"Data=[string]($_.RecordData.PSObject.Properties.Value | Select-Object -First 1)").
		JSON(2)

	res, err := g.exec.Invoke(ctx, server, cmd)
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, nil
	}
	return decodeList[Record](res)
}

// AddARecord creates an address record for a name in a zone, with the
// matching pointer record when a reverse zone exists.
func (g *Gateway) AddARecord(ctx context.Context, server, zone, name, ip string) error {
	cmd := broker.New("Add-DnsServerResourceRecordA").
		Param("ZoneName", zone).
		Param("Name", name).
		Param("IPv4Address", ip).
		Switch("CreatePtr").
		Param("ErrorAction", broker.Literal("Stop"))
	_, err := g.exec.Invoke(ctx, server, cmd)
	return err
}

// RemoveRecords deletes every record of one name and type in a zone.
// Names with no matching records are not an error.
func (g *Gateway) RemoveRecords(ctx context.Context, server, zone, name, recordType string) error {
	cmd := broker.New("Remove-DnsServerResourceRecord").
		Param("ZoneName", zone).
		Param("Name", name).
		Param("RRType", recordType).
		Switch("Force").
		Param("ErrorAction", broker.Literal("SilentlyContinue"))
	_, err := g.exec.Invoke(ctx, server, cmd)
	return err
}

// PtrZone derives the reverse lookup zone and record name for an IPv4
// address, assuming /24 zone delegation.
func PtrZone(ip string) (zone, name string, err error) {
	v4 := net.ParseIP(strings.TrimSpace(ip)).To4()
	if v4 == nil {
		return "", "", fmt.Errorf("invalid IPv4 address: %s", ip)
	}
	zone = fmt.Sprintf("%d.%d.%d.in-addr.arpa", v4[2], v4[1], v4[0])
	return zone, fmt.Sprintf("%d", v4[3]), nil
}

// decodeList decodes output that may be a JSON array or, when the
// pipeline produced a single object, a bare JSON object.
func decodeList[T any](res *broker.Result) ([]T, error) {
	var list []T
	if err := res.Decode(&list); err == nil {
		return list, nil
	}
	var one T
	if err := res.Decode(&one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}
