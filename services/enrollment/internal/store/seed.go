package store

// SeedDemo loads one three-lecture course enrolled by userID. It backs the
// development mode that runs without Postgres.
func SeedDemo(m *Memory, userID string) Enrollment {
	str := func(s string) *string { return &s }
	sec := func(n int) *int { return &n }
	m.PutCourse(Course{
		ID:          "course-go-services",
		Slug:        "go-services",
		Title:       "Building Services in Go",
		Description: "HTTP, persistence and messaging for production Go services.",
		Sections: []Section{
			{ID: "sec-basics", Title: "Basics", Order: 1, Lectures: []Lecture{
				{ID: "lec-intro", Title: "Introduction", Order: 1, Duration: sec(185), VideoURL: str("https://cdn.example.com/go-services/intro.mp4"), IsPreview: true, SectionID: "sec-basics"},
				{ID: "lec-http", Title: "Routing with chi", Order: 2, Duration: sec(612), VideoURL: str("https://cdn.example.com/go-services/http.mp4"), SectionID: "sec-basics"},
			}},
			{ID: "sec-data", Title: "Data", Order: 2, Lectures: []Lecture{
				{ID: "lec-pgx", Title: "Postgres with pgx", Order: 1, Duration: sec(744), VideoURL: str("https://cdn.example.com/go-services/pgx.mp4"), SectionID: "sec-data"},
			}},
		},
	})
	return m.PutEnrollment(Enrollment{ID: "enr-demo", UserID: userID, CourseID: "course-go-services"})
}
