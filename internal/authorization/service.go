// Package authorization decides which capabilities an actor holds, using a
// casbin RBAC model persisted through the gorm adapter.
package authorization

import (
	"context"
	"errors"
)

const (
	RoleAdmin  = "role:admin"
	RoleViewer = "role:viewer"

	// SubjectAnonymous is the caller without a session.
	SubjectAnonymous = "anonymous"
)

const (
	ObjectAnalytics = "analytics"
	ObjectUpload    = "upload"
	ObjectManager   = "manager"
	ObjectSync      = "sync"
	ObjectAuditLog  = "audit_log"
)

const (
	ActionAnalyticsView = "analytics.view"
	ActionUploadView    = "upload.view"
	ActionUploadCreate  = "upload.create"
	ActionManagerView   = "manager.view"
	ActionManagerWrite  = "manager.write"
	ActionSyncRun       = "sync.run"
	ActionAuditView     = "audit.view"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)

type Service interface {
	// Authorize returns ErrForbidden when subject may not perform action on object.
	Authorize(ctx context.Context, subject, object, action string) error
}

// AdminSubject names the signed-in operator.
func AdminSubject(username string) string {
	return "admin:" + username
}
