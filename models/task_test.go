package models

import (
	"encoding/json"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"CREATED", StatusCreated, false},
		{"todo", StatusCreated, false},
		{"Pending", StatusCreated, false},
		{"in_progress", StatusInProgress, false},
		{"COMPLETED", StatusCompleted, false},
		{"canceled", StatusCancelled, false},
		{"archived", "", true},
		{"", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseStatus(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority("urgent")
	require.NoError(t, err)
	assert.Equal(t, PriorityUrgent, p)

	_, err = ParsePriority("whenever")
	assert.Error(t, err)

	assert.Less(t, PriorityLow.Rank(), PriorityCritical.Rank())
	assert.Equal(t, -1, Priority("NOPE").Rank())
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		transition Transition
		from       Status
		want       Status
		ok         bool
	}{
		{TransitionStart, StatusCreated, StatusInProgress, true},
		{TransitionStart, StatusInProgress, "", false},
		{TransitionComplete, StatusInProgress, StatusCompleted, true},
		{TransitionComplete, StatusCreated, "", false},
		{TransitionCancel, StatusCreated, StatusCancelled, true},
		{TransitionCancel, StatusInProgress, StatusCancelled, true},
		{TransitionCancel, StatusCompleted, "", false},
		{TransitionCancel, StatusCancelled, "", false},
		{TransitionReopen, StatusCompleted, StatusCreated, true},
		{TransitionReopen, StatusCancelled, StatusCreated, true},
		{TransitionReopen, StatusInProgress, "", false},
	}

	for _, tc := range tests {
		t.Run(string(tc.transition)+" from "+string(tc.from), func(t *testing.T) {
			got, err := tc.transition.Apply(tc.from)
			if !tc.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAllowedTransitions(t *testing.T) {
	assert.Equal(t, []Transition{TransitionStart, TransitionCancel}, AllowedTransitions(StatusCreated))
	assert.Equal(t, []Transition{TransitionComplete, TransitionCancel}, AllowedTransitions(StatusInProgress))
	assert.Equal(t, []Transition{TransitionReopen}, AllowedTransitions(StatusCompleted))

	tr, ok := TransitionBetween(StatusCreated, StatusInProgress)
	assert.True(t, ok)
	assert.Equal(t, TransitionStart, tr)

	_, ok = TransitionBetween(StatusCreated, StatusCompleted)
	assert.False(t, ok)
}

func TestDateJSON(t *testing.T) {
	var v struct {
		Due *Date `json:"due"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"due":"2024-03-15"}`), &v))
	require.NotNil(t, v.Due)
	assert.Equal(t, "2024-03-15", v.Due.String())

	require.NoError(t, json.Unmarshal([]byte(`{"due":"2024-03-15T22:10:00Z"}`), &v))
	assert.Equal(t, "2024-03-15", v.Due.String())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"due":"2024-03-15"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"due":"15/03/2024"}`), &v))
}

func TestTaskOverdue(t *testing.T) {
	today := NewDate(2024, time.June, 10)
	past := NewDate(2024, time.June, 1)
	future := NewDate(2024, time.July, 1)

	assert.True(t, (&Task{Status: StatusCreated, DueDate: &past}).Overdue(today))
	assert.True(t, (&Task{Status: StatusInProgress, DueDate: &past}).Overdue(today))
	assert.False(t, (&Task{Status: StatusCompleted, DueDate: &past}).Overdue(today))
	assert.False(t, (&Task{Status: StatusCancelled, DueDate: &past}).Overdue(today))
	assert.False(t, (&Task{Status: StatusCreated, DueDate: &future}).Overdue(today))
	assert.False(t, (&Task{Status: StatusCreated, DueDate: &today}).Overdue(today))
	assert.False(t, (&Task{Status: StatusCreated}).Overdue(today))
}

func TestTaskClone(t *testing.T) {
	due := NewDate(2024, time.June, 1)
	orig := &Task{ID: 1, Title: "a", DueDate: &due}
	c := orig.Clone()
	c.DueDate.Time = c.DueDate.AddDate(0, 0, 1)
	c.Title = "b"

	assert.Equal(t, "2024-06-01", orig.DueDate.String())
	assert.Equal(t, "a", orig.Title)
}

func TestFilterMatches(t *testing.T) {
	todo := StatusCreated
	due := NewDate(2024, time.May, 20)
	task := &Task{
		Title:       "Write Report",
		Description: "quarterly numbers",
		Status:      StatusCreated,
		Priority:    PriorityUrgent,
		Assignee:    "alice",
		DueDate:     &due,
	}

	from := NewDate(2024, time.May, 1)
	to := NewDate(2024, time.May, 31)
	asOf := NewDate(2024, time.June, 1)

	assert.True(t, TaskFilter{}.Matches(task))
	assert.True(t, TaskFilter{Status: &todo, Priorities: []Priority{PriorityUrgent}}.Matches(task))
	assert.False(t, TaskFilter{Status: &todo, Priorities: []Priority{PriorityLow}}.Matches(task))
	assert.True(t, TaskFilter{Keyword: "REPORT"}.Matches(task))
	assert.True(t, TaskFilter{Keyword: "Quarterly"}.Matches(task))
	assert.False(t, TaskFilter{Keyword: "budget"}.Matches(task))
	assert.True(t, TaskFilter{Assignee: "alice"}.Matches(task))
	assert.False(t, TaskFilter{Assignee: "bob"}.Matches(task))
	assert.True(t, TaskFilter{DueFrom: &from, DueTo: &to}.Matches(task))
	assert.False(t, TaskFilter{DueFrom: &asOf}.Matches(task))
	assert.True(t, TaskFilter{OverdueAsOf: &asOf}.Matches(task))
	assert.False(t, TaskFilter{OverdueAsOf: &from}.Matches(task))
}

func TestPageRequestNormalize(t *testing.T) {
	p, err := PageRequest{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, DefaultPageRequest(), p)

	p, err = PageRequest{Page: 2, Size: 5, Sort: "priority", Direction: "DESC"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, SortDesc, p.Direction)
	assert.Equal(t, 10, p.Offset())

	for _, bad := range []PageRequest{
		{Page: -1},
		{Size: MaxPageSize + 1},
		{Sort: "password"},
		{Direction: "sideways"},
	} {
		_, err := bad.Normalize()
		assert.Error(t, err, "%+v", bad)
	}
}

func TestPageOffsetSaturates(t *testing.T) {
	assert.Equal(t, 30, PageRequest{Page: 3, Size: 10}.Offset())
	assert.Equal(t, math.MaxInt, PageRequest{Page: 922337203685477581, Size: 10}.Offset())
	assert.Equal(t, math.MaxInt, PageRequest{Page: math.MaxInt, Size: MaxPageSize}.Offset())
}

func TestNewPage(t *testing.T) {
	p := NewPage([]int{1, 2}, PageRequest{Page: 0, Size: 2}, 5)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, int64(5), p.TotalItems)

	empty := NewPage[int](nil, PageRequest{Page: 9, Size: 2}, 5)
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)
	assert.Equal(t, 3, empty.TotalPages)

	doubled := MapPage(p, func(i int) int { return i * 2 })
	assert.Equal(t, []int{2, 4}, doubled.Items)
	assert.Equal(t, p.TotalPages, doubled.TotalPages)
}

func TestCompareTasks(t *testing.T) {
	d1 := NewDate(2024, time.January, 1)
	d2 := NewDate(2024, time.February, 1)
	tasks := []*Task{
		{ID: 1, Title: "b", Priority: PriorityLow, DueDate: &d2},
		{ID: 2, Title: "A", Priority: PriorityCritical},
		{ID: 3, Title: "c", Priority: PriorityHigh, DueDate: &d1},
	}

	ids := func(ts []*Task) []int64 {
		out := make([]int64, 0, len(ts))
		for _, t := range ts {
			out = append(out, t.ID)
		}
		return out
	}

	slices.SortStableFunc(tasks, CompareTasks("title", SortAsc))
	assert.Equal(t, []int64{2, 1, 3}, ids(tasks))

	slices.SortStableFunc(tasks, CompareTasks("priority", SortDesc))
	assert.Equal(t, []int64{2, 3, 1}, ids(tasks))

	slices.SortStableFunc(tasks, CompareTasks("dueDate", SortAsc))
	assert.Equal(t, []int64{3, 1, 2}, ids(tasks))
}
