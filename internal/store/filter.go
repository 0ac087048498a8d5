package store

import (
	"strings"
)

// Predicate is a single SQL condition with its arguments.
type Predicate struct {
	SQL  string
	Args []any
}

// Page selects a slice of an ordered result set.
type Page struct {
	Offset int
	Limit  int
}

// Eq matches rows where column equals v.
func Eq(column string, v any) Predicate {
	return Predicate{SQL: column + " = ?", Args: []any{v}}
}

// IContains matches rows where column contains s, ignoring case.
func IContains(column, s string) Predicate {
	pattern := "%" + escapeLike(strings.ToLower(s)) + "%"
	return Predicate{SQL: "LOWER(" + column + ") LIKE ? ESCAPE '\\'", Args: []any{pattern}}
}

// In matches rows where column is one of ids. An empty list matches nothing.
func In(column string, ids []int64) Predicate {
	if len(ids) == 0 {
		return Predicate{SQL: "1 = 0"}
	}
	placeholders := strings.Repeat("?, ", len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return Predicate{SQL: column + " IN (" + placeholders[:len(placeholders)-2] + ")", Args: args}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// where joins predicates with AND into a WHERE clause.
func where(preds []Predicate) (string, []any) {
	if len(preds) == 0 {
		return "", nil
	}
	clauses := make([]string, len(preds))
	var args []any
	for i, p := range preds {
		clauses[i] = p.SQL
		args = append(args, p.Args...)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// limit renders LIMIT/OFFSET for a page; a zero-value page selects everything.
func (p Page) clause() (string, []any) {
	if p.Limit <= 0 && p.Offset <= 0 {
		return "", nil
	}
	if p.Limit <= 0 {
		// Both sqlite and postgres accept a huge LIMIT in place of "no limit"
		return " LIMIT ? OFFSET ?", []any{int64(1<<62), p.Offset}
	}
	return " LIMIT ? OFFSET ?", []any{p.Limit, p.Offset}
}

// UserFilter narrows user listings. Nil fields are ignored.
type UserFilter struct {
	Username         *string
	UsernameContains *string
	Email            *string
	EmailContains    *string
	IsStaff          *bool
	IsSuperuser      *bool
}

func (f UserFilter) predicates() []Predicate {
	var preds []Predicate
	if f.Username != nil {
		preds = append(preds, Eq("username", *f.Username))
	}
	if f.UsernameContains != nil {
		preds = append(preds, IContains("username", *f.UsernameContains))
	}
	if f.Email != nil {
		preds = append(preds, Eq("email", *f.Email))
	}
	if f.EmailContains != nil {
		preds = append(preds, IContains("email", *f.EmailContains))
	}
	if f.IsStaff != nil {
		preds = append(preds, Eq("is_staff", *f.IsStaff))
	}
	if f.IsSuperuser != nil {
		preds = append(preds, Eq("is_superuser", *f.IsSuperuser))
	}
	return preds
}

// ProfileFilter narrows profile listings. Nil fields are ignored.
type ProfileFilter struct {
	ProfileName              *string
	ProfileNameContains      *string
	SelfIntroduction         *string
	SelfIntroductionContains *string
	GitHubUsername           *string
	GitHubUsernameContains   *string
	TwitterUsername          *string
	TwitterUsernameContains  *string
}

func (f ProfileFilter) predicates() []Predicate {
	var preds []Predicate
	add := func(column string, exact, contains *string) {
		if exact != nil {
			preds = append(preds, Eq(column, *exact))
		}
		if contains != nil {
			preds = append(preds, IContains(column, *contains))
		}
	}
	add("profile_name", f.ProfileName, f.ProfileNameContains)
	add("self_introduction", f.SelfIntroduction, f.SelfIntroductionContains)
	add("github_username", f.GitHubUsername, f.GitHubUsernameContains)
	add("twitter_username", f.TwitterUsername, f.TwitterUsernameContains)
	return preds
}

// TaskFilter narrows task listings. Nil fields are ignored.
type TaskFilter struct {
	CreatorID     *int64
	Title         *string
	TitleContains *string
}

func (f TaskFilter) predicates() []Predicate {
	var preds []Predicate
	if f.CreatorID != nil {
		preds = append(preds, Eq("creator_id", *f.CreatorID))
	}
	if f.Title != nil {
		preds = append(preds, Eq("title", *f.Title))
	}
	if f.TitleContains != nil {
		preds = append(preds, IContains("title", *f.TitleContains))
	}
	return preds
}
