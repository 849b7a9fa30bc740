package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/seenimoa/mercadobr/pkg/models"
)

// ── Helpers ──

func okStep(name string, ran *[]string) Step {
	return Step{Name: name, Run: func(context.Context) (*StepResult, error) {
		*ran = append(*ran, name)
		return &StepResult{Summary: name + " ok"}, nil
	}}
}

func collector(rows int, fail error) func(context.Context) ([]string, *models.CollectionReport) {
	return func(context.Context) ([]string, *models.CollectionReport) {
		rep := models.NewCollectionReport("fake")
		if fail != nil {
			rep.Fail(fail)
			return nil, rep
		}
		items := make([]string, rows)
		if rows > 0 {
			rep.OK("x", rows)
		} else {
			rep.Skip("x", "empty")
		}
		rep.Finish()
		return items, rep
	}
}

// ── Orchestrator ──

func TestRunInOrder(t *testing.T) {
	var ran []string
	o := New(nil, okStep("a", &ran), okStep("b", &ran), okStep("c", &ran))

	rep, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.Join(ran, ",") != "a,b,c" {
		t.Errorf("order: got %v", ran)
	}
	if len(rep.Steps) != 3 || rep.Steps[1].Name != "b" {
		t.Errorf("steps: %+v", rep.Steps)
	}
	if strings.Join(o.Steps(), ",") != "a,b,c" {
		t.Errorf("Steps: %v", o.Steps())
	}
}

func TestRunAbortsOnFirstFailure(t *testing.T) {
	var ran []string
	boom := errors.New("boom")
	o := New(nil,
		okStep("a", &ran),
		Step{Name: "b", Run: func(context.Context) (*StepResult, error) { return nil, boom }},
		okStep("c", &ran),
	)

	rep, err := o.Run(context.Background())
	var se *StepError
	if !errors.As(err, &se) || se.Step != "b" {
		t.Fatalf("err: got %v, want StepError for b", err)
	}
	if !errors.Is(err, boom) {
		t.Error("StepError should unwrap to the cause")
	}
	if strings.Join(ran, ",") != "a" {
		t.Errorf("ran: got %v, want only a", ran)
	}
	if rep.Failed != "b" || len(rep.Steps) != 1 {
		t.Errorf("report: %+v", rep)
	}
}

func TestRunStep(t *testing.T) {
	var ran []string
	o := New(nil, okStep("a", &ran), okStep("b", &ran))

	res, err := o.RunStep(context.Background(), "b")
	if err != nil || res.Name != "b" {
		t.Fatalf("RunStep: %v %+v", err, res)
	}
	if strings.Join(ran, ",") != "b" {
		t.Errorf("ran: %v", ran)
	}
	if _, err := o.RunStep(context.Background(), "zzz"); !errors.Is(err, ErrUnknownStep) {
		t.Errorf("err: got %v, want ErrUnknownStep", err)
	}
}

func TestRunCanceled(t *testing.T) {
	var ran []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(nil, okStep("a", &ran)).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err: got %v", err)
	}
	if len(ran) != 0 {
		t.Error("no step should run")
	}
}

// ── CollectStep ──

func TestCollectStepWritesWhenRows(t *testing.T) {
	writes := 0
	step := CollectStep("x", collector(3, nil), func(items []string) (string, error) {
		writes++
		return "/tmp/x.csv", nil
	})
	res, err := step.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if writes != 1 || res.Rows != 3 || res.Written != "/tmp/x.csv" {
		t.Errorf("writes %d, result %+v", writes, res)
	}
}

func TestCollectStepSkipsWriteWhenEmpty(t *testing.T) {
	writes := 0
	step := CollectStep("x", collector(0, nil), func([]string) (string, error) {
		writes++
		return "", nil
	})
	res, err := step.Run(context.Background())
	if err != nil {
		t.Fatalf("empty collection is not a failure: %v", err)
	}
	if writes != 0 || res.Written != "" {
		t.Errorf("nothing should be written: writes %d, %+v", writes, res)
	}
}

func TestCollectStepFailure(t *testing.T) {
	cause := errors.New("missing key")
	step := CollectStep("x", collector(0, cause), func([]string) (string, error) {
		t.Fatal("write must not be called")
		return "", nil
	})
	if _, err := step.Run(context.Background()); !errors.Is(err, cause) {
		t.Errorf("err: got %v, want %v", err, cause)
	}
}

func TestCollectStepWriteError(t *testing.T) {
	disk := errors.New("disk full")
	step := CollectStep("x", collector(1, nil), func([]string) (string, error) { return "", disk })
	if _, err := step.Run(context.Background()); !errors.Is(err, disk) {
		t.Errorf("err: got %v", err)
	}
}
