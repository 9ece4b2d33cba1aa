package hyperv

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/jbweber/croft/internal/broker"
)

// FileExists reports whether a path exists on the host.
func (g *Gateway) FileExists(ctx context.Context, host, path string) (bool, error) {
	cmd := broker.New("Test-Path").Param("LiteralPath", path).JSON(1)

	res, err := g.exec.Invoke(ctx, host, cmd)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := res.Decode(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// DeleteFile removes a file on the host.
func (g *Gateway) DeleteFile(ctx context.Context, host, path string) error {
	cmd := strictly(broker.New("Remove-Item").
		Param("LiteralPath", path).
		Switch("Force"))
	return g.mutate(ctx, host, cmd)
}

// DeleteDirectoryIfEmpty removes a directory only when nothing is left
// inside it.
func (g *Gateway) DeleteDirectoryIfEmpty(ctx context.Context, host, path string) error {
	quoted := broker.Quote(path)
	script := fmt.Sprintf(
		"if ((Test-Path -LiteralPath %s) -and ((Get-ChildItem -LiteralPath %s -Force | Measure-Object).Count -eq 0)) { Remove-Item -LiteralPath %s -Force -ErrorAction Stop }",
		quoted, quoted, quoted)
	return g.mutate(ctx, host, broker.Script(script))
}

// EnsureDirectory creates a directory path, parents included.
func (g *Gateway) EnsureDirectory(ctx context.Context, host, path string) error {
	cmd := strictly(broker.New("New-Item").
		Param("ItemType", broker.Literal("Directory")).
		Param("Path", path).
		Switch("Force")).
		PipeRaw("Out-Null")
	return g.mutate(ctx, host, cmd)
}

// CopyFile copies a file on the host, overwriting the destination.
func (g *Gateway) CopyFile(ctx context.Context, host, src, dst string) error {
	cmd := strictly(broker.New("Copy-Item").
		Param("LiteralPath", src).
		Param("Destination", dst).
		Switch("Force"))
	return g.mutate(ctx, host, cmd)
}

// WriteFileBytes writes data to a file on the host. The payload rides
// inside the command as base64, so this suits answer files and other
// small artifacts, not disk images.
func (g *Gateway) WriteFileBytes(ctx context.Context, host, path string, data []byte) error {
	script := fmt.Sprintf(
		"[System.IO.File]::WriteAllBytes(%s, [System.Convert]::FromBase64String(%s))",
		broker.Quote(path), broker.Quote(base64.StdEncoding.EncodeToString(data)))
	return g.mutate(ctx, host, broker.Script(script))
}
