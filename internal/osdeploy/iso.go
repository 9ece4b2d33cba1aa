package osdeploy

import (
	"bytes"
	"fmt"

	"github.com/kdomanski/iso9660"
)

// autounattendVolume is the volume label of generated answer-file
// media. The installer scans every attached drive for autounattend.xml
// regardless of label; the label just makes the media recognizable.
const autounattendVolume = "UNATTEND"

// BuildAnswerISO packs a rendered answer file into an ISO image
// carrying a single autounattend.xml at the root, ready to attach as a
// DVD next to the installation media.
func BuildAnswerISO(answerFile []byte) ([]byte, error) {
	writer, err := iso9660.NewWriter()
	if err != nil {
		return nil, fmt.Errorf("failed to create ISO writer: %w", err)
	}
	defer func() {
		_ = writer.Cleanup()
	}()

	if err := writer.AddFile(bytes.NewReader(answerFile), "autounattend.xml"); err != nil {
		return nil, fmt.Errorf("failed to add autounattend.xml: %w", err)
	}

	var buf bytes.Buffer
	if err := writer.WriteTo(&buf, autounattendVolume); err != nil {
		return nil, fmt.Errorf("failed to write ISO image: %w", err)
	}
	return buf.Bytes(), nil
}
