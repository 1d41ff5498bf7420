package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/lms"
	"github.com/wednesdev-id/semindo-grow-hub-sub003/core/user"
)

func Test_lmsApi(t *testing.T) {
	setup(t)

	mentor := createUser(t, "Mentor", "mentor", user.RoleMentor)
	otherMentor := createUser(t, "Rina", "rina", user.RoleMentor)
	learner := createUser(t, "Siti", "siti", user.RoleUMKM)
	mentorToken, learnerToken := getToken(t, mentor), getToken(t, learner)

	courseIn := lms.CourseInput{Title: "Digital Marketing 101", Category: "Marketing", Level: "Beginner"}

	var course lms.Course
	rec := do(t, http.MethodPost, "/v1/courses", mentorToken, courseIn, &course)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "digital-marketing-101", course.Slug)
	assert.Equal(t, mentor.ID, course.InstructorID)
	assert.False(t, course.IsPublished)

	var dup lms.Course
	rec = do(t, http.MethodPost, "/v1/courses", mentorToken, courseIn, &dup)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "digital-marketing-101-2", dup.Slug)

	tests := []httpTest{
		{name: "learners cannot create courses", method: http.MethodPost, path: "/v1/courses", token: learnerToken, body: marchallObj(t, courseIn), wantCode: http.StatusForbidden},
		{name: "invalid level", method: http.MethodPost, path: "/v1/courses", token: mentorToken, body: marchallObj(t, lms.CourseInput{Title: "x", Category: "y", Level: "expert"}), wantCode: http.StatusBadRequest},
		{name: "title without letters", method: http.MethodPost, path: "/v1/courses", token: mentorToken, body: marchallObj(t, lms.CourseInput{Title: "!!!", Category: "y", Level: "beginner"}), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"title": "must contain letters or digits"})},
		{name: "drafts are hidden from the public", method: http.MethodGet, path: "/v1/courses/" + course.ID, wantCode: http.StatusNotFound},
		{name: "public catalog lists published courses only", method: http.MethodGet, path: "/v1/courses", wantData: marchallPage(t, 50, 0)},
		{name: "empty courses cannot be published", method: http.MethodPost, path: "/v1/courses/" + course.ID + "/publish", token: mentorToken, wantCode: http.StatusConflict},
		{name: "only the instructor edits", method: http.MethodPost, path: "/v1/courses/" + course.ID + "/lessons", token: getToken(t, otherMentor), body: marchallObj(t, lms.LessonInput{Title: "Intro"}), wantCode: http.StatusForbidden},
		{name: "cannot enroll in a draft", method: http.MethodPost, path: "/v1/courses/" + course.ID + "/enroll", token: learnerToken, wantCode: http.StatusConflict},
	}
	runTests(t, tests)

	var lessons []lms.Lesson
	for _, title := range []string{"Intro", "Social Media", "Ads"} {
		var l lms.Lesson
		rec = do(t, http.MethodPost, "/v1/courses/"+course.ID+"/lessons", mentorToken, lms.LessonInput{Title: title, DurationMinutes: 10}, &l)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		lessons = append(lessons, l)
	}
	assert.Equal(t, 3, lessons[2].Position)

	rec = do(t, http.MethodPut, "/v1/courses/"+course.ID+"/lessons/order", mentorToken,
		lms.LessonOrder{LessonIDs: []string{lessons[0].ID, lessons[1].ID}}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "partial order")

	rec = do(t, http.MethodPut, "/v1/courses/"+course.ID+"/lessons/order", mentorToken,
		lms.LessonOrder{LessonIDs: []string{lessons[2].ID, lessons[0].ID, lessons[1].ID}}, &course)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, course.Lessons, 3)
	assert.Equal(t, lessons[2].ID, course.Lessons[0].ID)
	assert.Equal(t, 1, course.Lessons[0].Position)

	rec = do(t, http.MethodPost, "/v1/courses/"+course.ID+"/publish", mentorToken, nil, &course)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, course.IsPublished)

	var page struct {
		Results []lms.Course `json:"results"`
	}
	rec = do(t, http.MethodGet, "/v1/courses?category=marketing", "", nil, &page)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, page.Results, 1)
	assert.Equal(t, course.ID, page.Results[0].ID)

	var e lms.Enrollment
	rec = do(t, http.MethodPost, "/v1/courses/"+course.ID+"/enroll", learnerToken, nil, &e)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, lms.EnrollmentActive, e.Status)
	assert.Zero(t, e.Progress)

	rec = do(t, http.MethodPost, "/v1/courses/"+course.ID+"/enroll", learnerToken, nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "already enrolled")
	rec = do(t, http.MethodDelete, "/v1/courses/"+course.ID, mentorToken, nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "course with enrollments")

	complete := func(lessonID string) lms.Enrollment {
		var e lms.Enrollment
		rec := do(t, http.MethodPost, "/v1/courses/"+course.ID+"/lessons/"+lessonID+"/complete", learnerToken, nil, &e)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return e
	}
	e = complete(lessons[0].ID)
	assert.Equal(t, 33.33, e.Progress)
	e = complete(lessons[0].ID)
	assert.Equal(t, 33.33, e.Progress, "completing twice is a no-op")
	complete(lessons[1].ID)
	e = complete(lessons[2].ID)
	assert.Equal(t, 100.0, e.Progress)
	assert.Equal(t, lms.EnrollmentCompleted, e.Status)
	assert.False(t, e.CompletedAt.IsZero())

	rec = do(t, http.MethodPost, "/v1/courses/"+course.ID+"/lessons/lol/complete", learnerToken, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var mine []lms.Enrollment
	rec = do(t, http.MethodGet, "/v1/enrollments", learnerToken, nil, &mine)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, mine, 1)
	assert.Equal(t, course.ID, mine[0].CourseID)

	// the draft duplicate has no enrollments
	rec = do(t, http.MethodDelete, "/v1/courses/"+dup.ID, mentorToken, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
