package action

import (
	"testing"

	"github.com/arlonet/httpd/response"
	"github.com/arlonet/httpd/status"
)

func TestSetResponseOnce(t *testing.T) {
	var a Action
	r := response.New(200)
	if code := a.SetResponse(r); !code.Ok() {
		t.Fatalf("first SetResponse: %v", code)
	}
	if code := a.SetResponse(r); code != status.ErrTooLate {
		t.Fatalf("expected ErrTooLate on second write, got %v", code)
	}
	if r.UseCount() != 1 {
		t.Fatalf("expected use count 1, got %d", r.UseCount())
	}
}

func TestSetResponseRejectsNil(t *testing.T) {
	var a Action
	if code := a.SetResponse(nil); code.Ok() {
		t.Fatal("expected rejection of nil response")
	}
}

func TestSetUploadIncrementalShape(t *testing.T) {
	var a Action
	inc := func(cls any, chunk []byte) status.Code { return status.OK }
	if code := a.SetUpload(0, inc, nil, nil); !code.Ok() {
		t.Fatalf("SetUpload incremental: %v", code)
	}
	if a.Kind() != KindUpload {
		t.Fatalf("expected KindUpload, got %v", a.Kind())
	}
}

func TestSetUploadRejectsMixedShape(t *testing.T) {
	var a Action
	inc := func(cls any, chunk []byte) status.Code { return status.OK }
	full := func(cls any, buf []byte, final bool) status.Code { return status.OK }
	if code := a.SetUpload(0, inc, full, nil); code.Ok() {
		t.Fatal("expected rejection of inc+full together with bufferSize 0")
	}
}

func TestSetUploadFullRequiresFullCallback(t *testing.T) {
	var a Action
	if code := a.SetUpload(4096, nil, nil, nil); code.Ok() {
		t.Fatal("expected rejection of missing full callback")
	}
}

func TestSetPostParseRequiresDoneCallback(t *testing.T) {
	var a Action
	if code := a.SetPostParse(PostParseConfig{}); code.Ok() {
		t.Fatal("expected rejection of missing done callback")
	}
}

func TestSetUpgradeRejectedWhenUploadPending(t *testing.T) {
	var a Action
	h := func(cls any) {}
	if code := a.SetUpgrade(h, true); code.Ok() {
		t.Fatal("expected rejection of upgrade while upload pending")
	}
}

func TestResetReleasesResponse(t *testing.T) {
	var a Action
	r := response.New(200)
	a.SetResponse(r)
	a.Reset()
	if r.UseCount() != 0 {
		t.Fatalf("expected use count 0 after reset, got %d", r.UseCount())
	}
	if a.Kind() != KindNone {
		t.Fatalf("expected KindNone after reset, got %v", a.Kind())
	}
}

func TestUploadActionContinueOnce(t *testing.T) {
	var u UploadAction
	if code := u.SetContinue(); !code.Ok() {
		t.Fatalf("SetContinue: %v", code)
	}
	if code := u.SetContinue(); code != status.ErrTooLate {
		t.Fatalf("expected ErrTooLate, got %v", code)
	}
}
