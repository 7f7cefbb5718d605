package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildcore/engine/internal/builderrors"
)

func newTestEntry() *BuildRequestEntry {
	req := BuildRequest{SubmissionID: 1, NodeRequestID: 10, ConfigurationID: 1, Targets: []string{"Build"}}
	cfg := BuildRequestConfiguration{ConfigurationID: 1, ProjectPath: "a.proj"}
	return New(req, cfg)
}

func TestInitialStateIsReady(t *testing.T) {
	e := newTestEntry()
	assert.Equal(t, Ready, e.State())
}

func TestFullLifecycleSingleSubRequest(t *testing.T) {
	e := newTestEntry()

	collected, err := e.Continue()
	require.NoError(t, err)
	assert.Empty(t, collected)
	assert.Equal(t, Active, e.State())

	sub := BuildRequest{NodeRequestID: 20, ConfigurationID: 2}
	require.NoError(t, e.WaitForResult(sub))
	assert.Equal(t, Waiting, e.State())

	assert.Nil(t, e.RequestsToIssueIfReady())

	require.NoError(t, e.ReportResult(BuildResult{NodeRequestID: 20, OverallCode: ResultSuccess}))
	assert.Equal(t, Ready, e.State())

	collected, err = e.Continue()
	require.NoError(t, err)
	require.Len(t, collected, 1)
	assert.Equal(t, ResultSuccess, collected[20].OverallCode)

	require.NoError(t, e.Complete(BuildResult{OverallCode: ResultSuccess}))
	assert.Equal(t, Complete, e.State())
	result, ok := e.Result()
	require.True(t, ok)
	assert.Equal(t, ResultSuccess, result.OverallCode)
}

func TestWaitingStaysWaitingUntilAllResolved(t *testing.T) {
	e := newTestEntry()
	_, err := e.Continue()
	require.NoError(t, err)

	require.NoError(t, e.WaitForResult(BuildRequest{NodeRequestID: 20, ConfigurationID: -1}))
	require.NoError(t, e.WaitForResult(BuildRequest{NodeRequestID: 21, ConfigurationID: 3}))

	require.NoError(t, e.ReportResult(BuildResult{NodeRequestID: 21}))
	assert.Equal(t, Waiting, e.State(), "request 20's configuration is still unresolved")
	assert.Nil(t, e.RequestsToIssueIfReady())

	require.NoError(t, e.ResolveConfiguration(-1, 5))
	reqs := e.RequestsToIssueIfReady()
	require.Len(t, reqs, 2)
	assert.Equal(t, 5, reqs[0].ConfigurationID)

	require.NoError(t, e.ReportResult(BuildResult{NodeRequestID: 20}))
	assert.Equal(t, Ready, e.State())
}

func TestSecondWaitingRoundDoesNotResurfacePriorRound(t *testing.T) {
	e := newTestEntry()
	_, err := e.Continue()
	require.NoError(t, err)

	require.NoError(t, e.WaitForResult(BuildRequest{NodeRequestID: 20, ConfigurationID: 2}))
	reqs := e.RequestsToIssueIfReady()
	require.Len(t, reqs, 1)
	assert.Equal(t, 20, reqs[0].NodeRequestID)

	require.NoError(t, e.ReportResult(BuildResult{NodeRequestID: 20, OverallCode: ResultSuccess}))
	assert.Equal(t, Ready, e.State())

	collected, err := e.Continue()
	require.NoError(t, err)
	require.Len(t, collected, 1)
	assert.Equal(t, Active, e.State())

	require.NoError(t, e.WaitForResult(BuildRequest{NodeRequestID: 30, ConfigurationID: 4}))
	reqs = e.RequestsToIssueIfReady()
	require.Len(t, reqs, 1, "second round must not re-list request 20 from the first round")
	assert.Equal(t, 30, reqs[0].NodeRequestID)

	require.NoError(t, e.ReportResult(BuildResult{NodeRequestID: 30, OverallCode: ResultSuccess}))
	assert.Equal(t, Ready, e.State())

	collected, err = e.Continue()
	require.NoError(t, err)
	require.Len(t, collected, 1)
	assert.Equal(t, ResultSuccess, collected[30].OverallCode)
	_, hasFirstRound := collected[20]
	assert.False(t, hasFirstRound, "second round's collected results must not include the first round's")
}

func TestUnmatchedReportIsIgnoredNotError(t *testing.T) {
	e := newTestEntry()
	_, err := e.Continue()
	require.NoError(t, err)
	require.NoError(t, e.WaitForResult(BuildRequest{NodeRequestID: 20, ConfigurationID: 2}))

	require.NoError(t, e.ReportResult(BuildResult{NodeRequestID: 999}))
	assert.Equal(t, Waiting, e.State())
}

func TestInvalidTransitionsAreFatal(t *testing.T) {
	e := newTestEntry()

	err := e.WaitForResult(BuildRequest{NodeRequestID: 1})
	require.Error(t, err)
	var berr *builderrors.Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, builderrors.KindWaitingInvalidTransition, berr.Kind)
	assert.True(t, berr.Kind.Fatal())

	err = e.Complete(BuildResult{})
	require.Error(t, err)

	_, err = e.Continue()
	require.NoError(t, err)
	require.NoError(t, e.Complete(BuildResult{OverallCode: ResultSuccess}))

	err = e.Complete(BuildResult{})
	require.Error(t, err)
	err = e.WaitForResult(BuildRequest{})
	require.Error(t, err)
	_, err = e.Continue()
	require.Error(t, err)
}

func TestBuildRequestConfigurationSameContentIgnoresID(t *testing.T) {
	a := BuildRequestConfiguration{ConfigurationID: 1, ProjectPath: "x.proj", GlobalProperties: map[string]string{"Config": "Debug"}, ExplicitTargets: []string{"Build"}}
	b := BuildRequestConfiguration{ConfigurationID: 2, ProjectPath: "x.proj", GlobalProperties: map[string]string{"Config": "Debug"}, ExplicitTargets: []string{"Build"}}
	assert.True(t, a.SameContent(b))

	c := b
	c.ExplicitTargets = []string{"Clean"}
	assert.False(t, a.SameContent(c))
}
