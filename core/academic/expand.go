package academic

import (
	"context"

	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/school"
)

func (svc *Service) expandClasses(ctx context.Context, items []Class) ([]ClassRead, error) {
	grades, err := svc.loaders.Grades.GetMany(ctx, core.IDs(items, func(c Class) int { return c.GradeID.Int }))
	if err != nil {
		return nil, err
	}
	teachers, err := svc.loaders.Employees.GetMany(ctx, core.IDs(items, func(c Class) int { return c.ClassTeacherID.Int }))
	if err != nil {
		return nil, err
	}
	insts, err := svc.loaders.Institutions.GetMany(ctx, core.IDs(items, func(c Class) int { return c.InstitutionID }))
	if err != nil {
		return nil, err
	}
	res := make([]ClassRead, len(items))
	for i, it := range items {
		res[i] = ClassRead{
			Class:        it,
			Grade:        core.Ref(grades, it.GradeID.Int),
			ClassTeacher: core.Ref(teachers, it.ClassTeacherID.Int),
			Institution:  core.Ref(insts, it.InstitutionID),
		}
	}
	return res, nil
}

func (svc *Service) expandClassSubjects(ctx context.Context, items []ClassSubject) ([]ClassSubjectRead, error) {
	classes, err := svc.stores.Classes.GetMany(ctx, core.IDs(items, func(cs ClassSubject) int { return cs.ClassID }))
	if err != nil {
		return nil, err
	}
	subjects, err := svc.loaders.Subjects.GetMany(ctx, core.IDs(items, func(cs ClassSubject) int { return cs.SubjectID }))
	if err != nil {
		return nil, err
	}
	teachers, err := svc.loaders.Employees.GetMany(ctx, core.IDs(items, func(cs ClassSubject) int { return cs.TeacherID.Int }))
	if err != nil {
		return nil, err
	}
	res := make([]ClassSubjectRead, len(items))
	for i, it := range items {
		res[i] = ClassSubjectRead{
			ClassSubject: it,
			Class:        core.Ref(classes, it.ClassID),
			Subject:      core.Ref(subjects, it.SubjectID),
			Teacher:      core.Ref(teachers, it.TeacherID.Int),
		}
	}
	return res, nil
}

func (svc *Service) expandPeriods(ctx context.Context, items []Period) ([]PeriodRead, error) {
	css, err := svc.stores.ClassSubjects.GetMany(ctx, core.IDs(items, func(p Period) int { return p.ClassSubjectID }))
	if err != nil {
		return nil, err
	}
	res := make([]PeriodRead, len(items))
	for i, it := range items {
		res[i] = PeriodRead{Period: it, ClassSubject: core.Ref(css, it.ClassSubjectID)}
	}
	return res, nil
}

func (svc *Service) expandAttendances(ctx context.Context, items []Attendance) ([]AttendanceRead, error) {
	lessons, err := svc.stores.Lessons.GetMany(ctx, core.IDs(items, func(a Attendance) int { return a.LessonID }))
	if err != nil {
		return nil, err
	}
	students, err := svc.loaders.Students.GetMany(ctx, core.IDs(items, func(a Attendance) int { return a.StudentID }))
	if err != nil {
		return nil, err
	}
	groups, err := svc.stores.AttendanceGroups.GetMany(ctx, core.IDs(items, func(a Attendance) int { return a.AttendanceGroupID }))
	if err != nil {
		return nil, err
	}
	res := make([]AttendanceRead, len(items))
	for i, it := range items {
		res[i] = AttendanceRead{
			Attendance:      it,
			Lesson:          core.Ref(lessons, it.LessonID),
			Student:         core.Ref(students, it.StudentID),
			AttendanceGroup: core.Ref(groups, it.AttendanceGroupID),
		}
	}
	return res, nil
}

func (svc *Service) expandAnnouncements(ctx context.Context, items []Announcement) ([]AnnouncementRead, error) {
	users, err := svc.loaders.Users.GetMany(ctx, core.IDs(items, func(a Announcement) int { return a.PostedByID.Int }))
	if err != nil {
		return nil, err
	}
	res := make([]AnnouncementRead, len(items))
	for i, it := range items {
		res[i] = AnnouncementRead{Announcement: it, PostedBy: core.Ref(users, it.PostedByID.Int)}
	}
	return res, nil
}

func (svc *Service) expandMarkingCriteria(ctx context.Context, items []MarkingCriterion) ([]MarkingCriterionRead, error) {
	css, err := svc.stores.ClassSubjects.GetMany(ctx, core.IDs(items, func(m MarkingCriterion) int { return m.ClassSubjectID }))
	if err != nil {
		return nil, err
	}
	years, err := svc.loaders.AcademicYears.GetMany(ctx, core.IDs(items, func(m MarkingCriterion) int { return m.AcademicYearID.Int }))
	if err != nil {
		return nil, err
	}
	res := make([]MarkingCriterionRead, len(items))
	for i, it := range items {
		res[i] = MarkingCriterionRead{
			MarkingCriterion: it,
			ClassSubject:     core.Ref(css, it.ClassSubjectID),
			AcademicYear:     core.Ref(years, it.AcademicYearID.Int),
		}
	}
	return res, nil
}

// assessmentRefs loads the relations assignments and exams share.
type assessmentRefs struct {
	classSubjects map[int]ClassSubject
	criteria      map[int]MarkingCriterion
	terms         map[int]school.Term
}

func (svc *Service) loadAssessmentRefs(ctx context.Context, csIDs, criterionIDs, termIDs []int) (assessmentRefs, error) {
	var (
		refs assessmentRefs
		err  error
	)
	if refs.classSubjects, err = svc.stores.ClassSubjects.GetMany(ctx, csIDs); err != nil {
		return refs, err
	}
	if refs.criteria, err = svc.stores.MarkingCriteria.GetMany(ctx, criterionIDs); err != nil {
		return refs, err
	}
	refs.terms, err = svc.loaders.Terms.GetMany(ctx, termIDs)
	return refs, err
}

func (svc *Service) expandAssignments(ctx context.Context, items []Assignment) ([]AssignmentRead, error) {
	refs, err := svc.loadAssessmentRefs(ctx,
		core.IDs(items, func(a Assignment) int { return a.ClassSubjectID }),
		core.IDs(items, func(a Assignment) int { return a.MarkingCriterionID.Int }),
		core.IDs(items, func(a Assignment) int { return a.TermID.Int }),
	)
	if err != nil {
		return nil, err
	}
	res := make([]AssignmentRead, len(items))
	for i, it := range items {
		res[i] = AssignmentRead{
			Assignment:       it,
			ClassSubject:     core.Ref(refs.classSubjects, it.ClassSubjectID),
			MarkingCriterion: core.Ref(refs.criteria, it.MarkingCriterionID.Int),
			Term:             core.Ref(refs.terms, it.TermID.Int),
		}
	}
	return res, nil
}

func (svc *Service) expandExams(ctx context.Context, items []Exam) ([]ExamRead, error) {
	refs, err := svc.loadAssessmentRefs(ctx,
		core.IDs(items, func(e Exam) int { return e.ClassSubjectID }),
		core.IDs(items, func(e Exam) int { return e.MarkingCriterionID.Int }),
		core.IDs(items, func(e Exam) int { return e.TermID.Int }),
	)
	if err != nil {
		return nil, err
	}
	res := make([]ExamRead, len(items))
	for i, it := range items {
		res[i] = ExamRead{
			Exam:             it,
			ClassSubject:     core.Ref(refs.classSubjects, it.ClassSubjectID),
			MarkingCriterion: core.Ref(refs.criteria, it.MarkingCriterionID.Int),
			Term:             core.Ref(refs.terms, it.TermID.Int),
		}
	}
	return res, nil
}

func (svc *Service) expandMarks(ctx context.Context, items []Mark) ([]MarkRead, error) {
	students, err := svc.loaders.Students.GetMany(ctx, core.IDs(items, func(m Mark) int { return m.StudentID }))
	if err != nil {
		return nil, err
	}
	refs, err := svc.loadAssessmentRefs(ctx,
		core.IDs(items, func(m Mark) int { return m.ClassSubjectID }),
		core.IDs(items, func(m Mark) int { return m.MarkingCriterionID.Int }),
		nil,
	)
	if err != nil {
		return nil, err
	}
	res := make([]MarkRead, len(items))
	for i, it := range items {
		res[i] = MarkRead{
			Mark:             it,
			Student:          core.Ref(students, it.StudentID),
			ClassSubject:     core.Ref(refs.classSubjects, it.ClassSubjectID),
			MarkingCriterion: core.Ref(refs.criteria, it.MarkingCriterionID.Int),
		}
	}
	return res, nil
}

func (svc *Service) expandTermResults(ctx context.Context, items []TermResult) ([]TermResultRead, error) {
	students, err := svc.loaders.Students.GetMany(ctx, core.IDs(items, func(r TermResult) int { return r.StudentID }))
	if err != nil {
		return nil, err
	}
	years, err := svc.loaders.AcademicYears.GetMany(ctx, core.IDs(items, func(r TermResult) int { return r.AcademicYearID }))
	if err != nil {
		return nil, err
	}
	refs, err := svc.loadAssessmentRefs(ctx,
		core.IDs(items, func(r TermResult) int { return r.ClassSubjectID }),
		nil,
		core.IDs(items, func(r TermResult) int { return r.TermID }),
	)
	if err != nil {
		return nil, err
	}
	res := make([]TermResultRead, len(items))
	for i, it := range items {
		res[i] = TermResultRead{
			TermResult:   it,
			Term:         core.Ref(refs.terms, it.TermID),
			Student:      core.Ref(students, it.StudentID),
			ClassSubject: core.Ref(refs.classSubjects, it.ClassSubjectID),
			AcademicYear: core.Ref(years, it.AcademicYearID),
		}
	}
	return res, nil
}
