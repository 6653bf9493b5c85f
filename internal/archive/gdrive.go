// Package archive uploads finished interview reports to a shared Google
// Drive folder so recruiters can review them outside the hiring platform.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/synchire/interview-agent/internal/notify"
)

type DriveArchiver struct {
	service  *drive.Service
	folderID string
	mu       sync.Mutex
	fileIDs  map[string]string
}

func NewDriveArchiver(ctx context.Context, credPath, folderID string) (*DriveArchiver, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &DriveArchiver{
		service:  svc,
		folderID: folderID,
		fileIDs:  make(map[string]string),
	}, nil
}

// UploadReport stores the report as JSON named after the interview. A
// repeat upload for the same interview replaces the previous file.
func (a *DriveArchiver) UploadReport(ctx context.Context, report notify.Report) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	name := fmt.Sprintf("interview-%s.json", report.InterviewID)

	if fileID, ok := a.fileIDs[report.InterviewID]; ok {
		_, err = a.service.Files.Update(fileID, &drive.File{}).Context(ctx).Media(bytes.NewReader(payload)).Do()
		if err != nil {
			return fmt.Errorf("drive update: %w", err)
		}
		return nil
	}

	doc, err := a.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: "application/json",
		Parents:  []string{a.folderID},
	}).Context(ctx).Media(bytes.NewReader(payload)).Do()
	if err != nil {
		return fmt.Errorf("drive create: %w", err)
	}

	a.fileIDs[report.InterviewID] = doc.Id
	return nil
}
