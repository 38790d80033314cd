package scheduling

import (
	"net/http"
	"testing"

	"tournament-scheduler/backend/internal/schedule"

	"github.com/stretchr/testify/assert"
)

func TestStatusForCode(t *testing.T) {
	cases := []struct {
		code   string
		status int
	}{
		{schedule.CodeNotFound, http.StatusNotFound},
		{schedule.CodePlanInvalid, http.StatusBadRequest},
		{schedule.CodeTemplateUnsupported, http.StatusBadRequest},
		{schedule.CodeInvalidTeamCount, http.StatusBadRequest},
		{schedule.CodeSelfEdge, http.StatusBadRequest},
		{schedule.CodeGroupCapacityMismatch, http.StatusBadRequest},
		// a finalized version rejecting mutation is a 400, not a conflict
		{schedule.CodeVersionNotDraft, http.StatusBadRequest},
		{schedule.CodeSourceVersionNotFinal, http.StatusBadRequest},
		{schedule.CodeDuplicateEdge, http.StatusConflict},
		{schedule.CodeAssignmentOverlap, http.StatusConflict},
		{schedule.CodeLockTimeout, http.StatusServiceUnavailable},
		{schedule.CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, statusForCode(tc.code), "code %s", tc.code)
	}
}
