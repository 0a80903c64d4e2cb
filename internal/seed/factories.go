// Package seed creates built-in forums and demo data for development databases.
package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"quad/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is the password of every generated user.
const DemoPassword = "Quad-Demo-Pass1!"

var (
	universities = []string{
		"State University", "Riverside College", "Northfield Institute of Technology",
		"Lakeshore University", "Hillcrest College",
	}
	majors = []string{
		"Computer Science", "Biology", "Economics", "Mechanical Engineering", "Psychology",
		"History", "Mathematics", "Physics", "Political Science", "Art History",
	}
	interestPool = []string{
		"chess", "hiking", "photography", "robotics", "jazz", "football", "cooking",
		"startups", "debate", "climbing", "anime", "gaming", "volunteering", "poetry",
	}
	courseCodes = []string{"CS101", "CS201", "BIO110", "ECON100", "MATH221", "PHYS150", "HIST230"}
	conditions  = []models.BookCondition{
		models.BookConditionNew, models.BookConditionGood, models.BookConditionFair, models.BookConditionPoor,
	}
	resourceCategories = []string{"study", "housing", "career", "health"}
)

// Factory builds demo entities and persists them.
type Factory struct {
	db   *gorm.DB
	opts Options
	rnd  *rand.Rand
	// synthetic ID counter in DryRun mode
	nextID uint

	passwordHash string
}

// NewFactory returns a Factory bound to db.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	//nolint:gosec // demo data
	return &Factory{db: db, opts: opts, rnd: rand.New(rand.NewSource(seed)), nextID: 1000}
}

func (f *Factory) hash() string {
	if f.passwordHash != "" {
		return f.passwordHash
	}
	if f.opts.SkipBcrypt {
		f.passwordHash = DemoPassword
		return f.passwordHash
	}
	hashed, _ := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	f.passwordHash = string(hashed)
	return f.passwordHash
}

func (f *Factory) pick(list []string) string {
	return list[f.rnd.Intn(len(list))]
}

func (f *Factory) interests() string {
	n := 2 + f.rnd.Intn(4)
	picked := make([]string, 0, n)
	seen := make(map[string]bool, n)
	for len(picked) < n {
		tag := f.pick(interestPool)
		if !seen[tag] {
			seen[tag] = true
			picked = append(picked, tag)
		}
	}
	return strings.Join(picked, ",")
}

func (f *Factory) persist(value interface{}, setID func(uint)) error {
	if f.opts.DryRun {
		f.nextID++
		setID(f.nextID)
		return nil
	}
	return f.db.Create(value).Error
}

// BuildUser returns an unsaved user with a filled-in student profile.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	first, last := gofakeit.FirstName(), gofakeit.LastName()
	username := strings.ToLower(fmt.Sprintf("%s_%s%d", first, last, gofakeit.Number(10, 999)))
	username = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			return r
		}
		return -1
	}, username)
	if len(username) > 30 {
		username = username[:30]
	}

	user := &models.User{
		Username:    username,
		Email:       username + "@" + gofakeit.DomainName(),
		Password:    f.hash(),
		DisplayName: first + " " + last,
		Bio:         gofakeit.Sentence(12),
		Avatar:      fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
		University:  f.pick(universities),
		Major:       f.pick(majors),
		YearOfStudy: 1 + f.rnd.Intn(5),
		Interests:   f.interests(),
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser builds and saves a user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if err := f.persist(user, func(id uint) { user.ID = id }); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateConnection saves an edge between two users.
func (f *Factory) CreateConnection(from, to uint, status models.ConnectionStatus) (*models.Connection, error) {
	conn := &models.Connection{RequesterID: from, AddresseeID: to, Status: status}
	if f.opts.DryRun {
		f.nextID++
		conn.ID = f.nextID
		return conn, nil
	}
	if err := f.db.Omit("Requester", "Addressee").Create(conn).Error; err != nil {
		return nil, err
	}
	return conn, nil
}

// BuildPost returns an unsaved post with a created_at spread over MaxDays.
func (f *Factory) BuildPost(forumID, userID uint) *models.Post {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 60
	}
	age := time.Duration(f.rnd.Intn(maxDays))*24*time.Hour + time.Duration(f.rnd.Intn(24*60))*time.Minute
	return &models.Post{
		ForumID:   forumID,
		UserID:    userID,
		Title:     strings.TrimSuffix(gofakeit.Sentence(6), "."),
		Body:      gofakeit.Paragraph(1+f.rnd.Intn(3), 3, 8, "\n\n"),
		CreatedAt: time.Now().Add(-age),
	}
}

// CreatePost builds and saves a post.
func (f *Factory) CreatePost(forumID, userID uint) (*models.Post, error) {
	post := f.BuildPost(forumID, userID)
	if f.opts.DryRun {
		f.nextID++
		post.ID = f.nextID
		return post, nil
	}
	if err := f.db.Omit("User", "Forum").Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment saves a reply to postID.
func (f *Factory) CreateComment(postID, userID uint) (*models.Comment, error) {
	comment := &models.Comment{PostID: postID, UserID: userID, Body: gofakeit.Sentence(10)}
	if f.opts.DryRun {
		f.nextID++
		comment.ID = f.nextID
		return comment, nil
	}
	if err := f.db.Omit("User").Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// BuildBook returns an unsaved book with a valid ISBN-13.
func (f *Factory) BuildBook(ownerID uint) *models.Book {
	return &models.Book{
		OwnerID:     ownerID,
		Title:       gofakeit.BookTitle(),
		Author:      gofakeit.BookAuthor(),
		ISBN:        FakeISBN13(f.rnd),
		CourseCode:  f.pick(courseCodes),
		Description: gofakeit.Sentence(14),
		Condition:   conditions[f.rnd.Intn(len(conditions))],
		Available:   true,
	}
}

// CreateBook builds and saves a book.
func (f *Factory) CreateBook(ownerID uint) (*models.Book, error) {
	book := f.BuildBook(ownerID)
	if f.opts.DryRun {
		f.nextID++
		book.ID = f.nextID
		return book, nil
	}
	if err := f.db.Omit("Owner").Create(book).Error; err != nil {
		return nil, err
	}
	return book, nil
}

// CreateResource saves a resource link in a random category.
func (f *Factory) CreateResource(authorID uint) (*models.Resource, error) {
	res := &models.Resource{
		Category:    f.pick(resourceCategories),
		Title:       strings.TrimSuffix(gofakeit.Sentence(4), "."),
		URL:         "https://" + gofakeit.DomainName() + "/" + gofakeit.Word(),
		Description: gofakeit.Sentence(12),
		AuthorID:    authorID,
	}
	if f.opts.DryRun {
		f.nextID++
		res.ID = f.nextID
		return res, nil
	}
	if err := f.db.Omit("Author").Create(res).Error; err != nil {
		return nil, err
	}
	return res, nil
}

// FakeISBN13 returns a random 978-prefixed ISBN-13 with a correct check digit.
func FakeISBN13(r *rand.Rand) string {
	digits := make([]byte, 0, 13)
	digits = append(digits, '9', '7', '8')
	for i := 0; i < 9; i++ {
		digits = append(digits, byte('0'+r.Intn(10)))
	}
	sum := 0
	for i, d := range digits {
		w := 1
		if i%2 == 1 {
			w = 3
		}
		sum += int(d-'0') * w
	}
	digits = append(digits, byte('0'+(10-sum%10)%10))
	return string(digits)
}
