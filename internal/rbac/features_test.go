package rbac

import (
	"context"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
)

type permissionSteps struct {
	principal Principal
	answer    bool
}

func (s *permissionSteps) signedInWithRole(role string) error {
	tag, _ := ParseRoleTag(role)
	s.principal = principalWith(tag)
	return nil
}

func (s *permissionSteps) theyCheck(action, resource string) error {
	res := ParseResource(resource)
	if res == ResourceNone {
		return fmt.Errorf("unknown resource %q", resource)
	}
	s.answer = s.principal.HasPermission(ParseAction(action), res)
	return nil
}

func expectYesNo(got bool, want string) error {
	if (want == "yes") != got {
		return fmt.Errorf("expected %s, got %t", want, got)
	}
	return nil
}

func (s *permissionSteps) theAnswerIs(want string) error {
	return expectYesNo(s.answer, want)
}

func (s *permissionSteps) donorFormIs(want string) error {
	return expectYesNo(s.principal.CanSeeDonorForm(), want)
}

func (s *permissionSteps) roleShownAs(label string) error {
	if got := s.principal.RoleName(); got != label {
		return fmt.Errorf("expected role label %q, got %q", label, got)
	}
	return nil
}

func initializePermissionScenario(sc *godog.ScenarioContext) {
	steps := &permissionSteps{}
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		*steps = permissionSteps{}
		return ctx, nil
	})
	sc.Step(`^a volunteer signed in with role "([^"]*)"$`, steps.signedInWithRole)
	sc.Step(`^they check "([^"]*)" on "([^"]*)"$`, steps.theyCheck)
	sc.Step(`^the answer is "(yes|no)"$`, steps.theAnswerIs)
	sc.Step(`^the donor form is "(yes|no)"$`, steps.donorFormIs)
	sc.Step(`^the role is shown as "([^"]*)"$`, steps.roleShownAs)
}

func TestPermissionFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializePermissionScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run permission features")
	}
}
