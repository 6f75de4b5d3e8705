// Package action implements the small action algebra described in §4.L:
// the tagged value an application request/upload callback returns, and
// the core's legality checks before acting on it. Each slot is
// write-once — a second attempt to set it is rejected.
package action

import (
	"github.com/arlonet/httpd/response"
	"github.com/arlonet/httpd/status"
)

// Kind tags which variant an Action or UploadAction currently holds.
type Kind int

const (
	KindNone Kind = iota
	KindResponse
	KindSuspend
	KindUpload
	KindPostParse
	KindUpgrade
	KindContinue // UploadAction only
)

// UploadIncrementalCallback is invoked once per received chunk when an
// Upload action was configured with a zero large_buffer_size (§4.L).
type UploadIncrementalCallback func(cls any, chunk []byte) status.Code

// UploadFullCallback is invoked once the upload's configured buffer is
// full, or the upload completes, whichever comes first.
type UploadFullCallback func(cls any, buf []byte, final bool) status.Code

// PostParseConfig configures a PostParse action; DoneCallback is required
// (§4.L "PostParse: required done-callback").
type PostParseConfig struct {
	AutoStreamSize int64
	DoneCallback   func(cls any) status.Code
	Cls            any
}

// UpgradeHandler takes over a connection's raw byte stream after a
// successful Upgrade, per §4.L's upgrade legality rule (rejected while an
// upload is still pending).
type UpgradeHandler func(rawConnCls any)

// Action is the tagged value a request-handling callback sets exactly
// once. The zero value is KindNone.
type Action struct {
	kind Kind

	resp *response.Response

	uploadBufferSize int64
	uploadIncCB      UploadIncrementalCallback
	uploadFullCB     UploadFullCallback
	uploadCls        any

	postParse PostParseConfig

	upgrade UpgradeHandler

	written bool
}

// SetResponse records a Response(resp) action. Returns status.ErrTooLate
// if the slot was already written this invocation, or
// status.ErrTypeUnknown for a nil response.
func (a *Action) SetResponse(resp *response.Response) status.Code {
	if a.written {
		return status.ErrTooLate
	}
	if resp == nil {
		return status.ErrTypeUnknown
	}
	a.kind = KindResponse
	a.resp = resp
	a.written = true
	resp.Retain()
	return status.OK
}

// SetSuspend records a Suspend action: the core parks the connection
// until the application explicitly resumes it.
func (a *Action) SetSuspend() status.Code {
	if a.written {
		return status.ErrTooLate
	}
	a.kind = KindSuspend
	a.written = true
	return status.OK
}

// SetUpload records an Upload action. Per §4.L's legality rule, exactly
// one of the two callback shapes is valid: bufferSize == 0 requires incCB
// non-nil and fullCB nil (the application wants every chunk as it
// arrives); bufferSize > 0 requires fullCB non-nil.
func (a *Action) SetUpload(bufferSize int64, incCB UploadIncrementalCallback, fullCB UploadFullCallback, cls any) status.Code {
	if a.written {
		return status.ErrTooLate
	}
	if bufferSize == 0 {
		if incCB == nil || fullCB != nil {
			return status.ErrTypeUnknown
		}
	} else if fullCB == nil {
		return status.ErrTypeUnknown
	}
	a.kind = KindUpload
	a.uploadBufferSize = bufferSize
	a.uploadIncCB = incCB
	a.uploadFullCB = fullCB
	a.uploadCls = cls
	a.written = true
	return status.OK
}

// SetPostParse records a PostParse action; cfg.DoneCallback is required.
func (a *Action) SetPostParse(cfg PostParseConfig) status.Code {
	if a.written {
		return status.ErrTooLate
	}
	if cfg.DoneCallback == nil {
		return status.ErrTypeUnknown
	}
	a.kind = KindPostParse
	a.postParse = cfg
	a.written = true
	return status.OK
}

// SetUpgrade records an Upgrade action. uploadPending is supplied by the
// caller (the stream processor knows whether received size is still
// short of content size); an Upgrade while an upload is pending is
// illegal per §4.L.
func (a *Action) SetUpgrade(h UpgradeHandler, uploadPending bool) status.Code {
	if a.written {
		return status.ErrTooLate
	}
	if uploadPending {
		return status.ErrTooLate
	}
	if h == nil {
		return status.ErrTypeUnknown
	}
	a.kind = KindUpgrade
	a.upgrade = h
	a.written = true
	return status.OK
}

// Kind reports which variant is currently set.
func (a *Action) Kind() Kind { return a.kind }

// Response returns the attached response and true if Kind() == KindResponse.
func (a *Action) Response() (*response.Response, bool) {
	return a.resp, a.kind == KindResponse
}

// Upload returns the upload configuration and true if Kind() == KindUpload.
func (a *Action) Upload() (bufferSize int64, incCB UploadIncrementalCallback, fullCB UploadFullCallback, cls any, ok bool) {
	return a.uploadBufferSize, a.uploadIncCB, a.uploadFullCB, a.uploadCls, a.kind == KindUpload
}

// PostParse returns the post-parse configuration and true if
// Kind() == KindPostParse.
func (a *Action) PostParse() (PostParseConfig, bool) {
	return a.postParse, a.kind == KindPostParse
}

// Upgrade returns the upgrade handler and true if Kind() == KindUpgrade.
func (a *Action) Upgrade() (UpgradeHandler, bool) {
	return a.upgrade, a.kind == KindUpgrade
}

// Reset clears a for reuse on the next request, releasing any retained
// response.
func (a *Action) Reset() {
	if a.kind == KindResponse && a.resp != nil {
		a.resp.Release()
	}
	*a = Action{}
}

// UploadAction is the upload-callback counterpart: {NoAction, Response,
// Suspend, Continue, Upgrade}, per §3.
type UploadAction struct {
	kind    Kind
	resp    *response.Response
	upgrade UpgradeHandler
	written bool
}

func (u *UploadAction) SetResponse(resp *response.Response) status.Code {
	if u.written {
		return status.ErrTooLate
	}
	if resp == nil {
		return status.ErrTypeUnknown
	}
	u.kind = KindResponse
	u.resp = resp
	u.written = true
	resp.Retain()
	return status.OK
}

func (u *UploadAction) SetSuspend() status.Code {
	if u.written {
		return status.ErrTooLate
	}
	u.kind = KindSuspend
	u.written = true
	return status.OK
}

func (u *UploadAction) SetContinue() status.Code {
	if u.written {
		return status.ErrTooLate
	}
	u.kind = KindContinue
	u.written = true
	return status.OK
}

func (u *UploadAction) SetUpgrade(h UpgradeHandler) status.Code {
	if u.written {
		return status.ErrTooLate
	}
	if h == nil {
		return status.ErrTypeUnknown
	}
	u.kind = KindUpgrade
	u.upgrade = h
	u.written = true
	return status.OK
}

func (u *UploadAction) Kind() Kind { return u.kind }

func (u *UploadAction) Response() (*response.Response, bool) {
	return u.resp, u.kind == KindResponse
}

func (u *UploadAction) Reset() {
	if u.kind == KindResponse && u.resp != nil {
		u.resp.Release()
	}
	*u = UploadAction{}
}
