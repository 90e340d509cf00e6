package sqlxrepos

import (
	"github.com/trezcool/askante/core"
	"github.com/trezcool/askante/core/library"
	"github.com/trezcool/askante/core/query"
)

var (
	LibraryBooksMeta = Meta{Entity: "Library book", Table: "library_books", Scope: query.ByOrganization("organization_id")}
	BookCopiesMeta   = Meta{Entity: "Library book copy", Table: "library_book_copies", Scope: query.ByInstitution("institution_id")}
)

func NewLibraryStores(db core.DB) library.Stores {
	return library.Stores{
		Books: NewStore(db, Table[library.Book]{
			Meta: LibraryBooksMeta,
			Columns: []string{
				"type", "isbn", "title", "subtitle", "author", "publisher", "subject_id",
				"date_published", "length_pages", "edition", "cover_image", "organization_id",
			},
			Ordering: []core.DBOrdering{{Field: "title", Ascending: true}},
			Refs: []Ref{
				{Column: "subject_id", To: SubjectsMeta},
				{Column: "organization_id", To: OrganizationsMeta},
			},
		}),
		Copies: NewStore(db, Table[library.Copy]{
			Meta: BookCopiesMeta,
			Columns: []string{
				"library_book_id", "copy_number", "location", "shelf_row", "institution_id",
				"current_lender_id", "check_out_date", "due_date", "check_in_date", "status",
			},
			Refs: []Ref{
				{Column: "library_book_id", To: LibraryBooksMeta},
				{Column: "institution_id", To: InstitutionsMeta},
				{Column: "current_lender_id", To: StudentsMeta},
			},
		}),
	}
}
