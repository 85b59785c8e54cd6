/*
	Package users administers the training accounts: rename-users gives each
	account a real name and set-passwords changes the password of all training
	and trainer accounts.  Both must be run by an administrator.
*/
package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/janelia-flyem/omerotools/omero"
	"github.com/janelia-flyem/omerotools/scripts"
)

const (
	RenameName = "rename-users"
	RenameURL  = "github.com/janelia-flyem/omerotools/scripts/users/rename"

	PasswordsName = "set-passwords"
	PasswordsURL  = "github.com/janelia-flyem/omerotools/scripts/users/passwords"

	Version = "0.1"

	TrainerPrefix = "trainer"
)

var DefaultUsers = omero.Range{First: 1, Last: 50}

// DefaultTrainers get the new password along with the training accounts.
var DefaultTrainers = omero.Range{First: 1, Last: 2}

// DefaultNames are given to user-1 onwards.
var DefaultNames = []string{
	"Francis Crick", "Linda Buck", "Charles Darwin", "Marie Curie", "Alexander Fleming",
	"Rosalind Franklin", "Robert Hooke", "Jane Goodall", "Gregor Mendel", "Barbara McClintock",
	"Louis Pasteur", "Ada Lovelace", "Linus Pauling", "Frances Kelsey", "Maurice Wilkins",
	"Florence Nightingale", "John Sulston", "Elizabeth Blackwell", "Richard Dawkins", "Caroline Dean",
	"Stephen Reicher", "Wendy Barclay", "Paul Nurse", "Jennifer Doudna", "Adrian Thomas",
	"Ann Clarke", "Oswald Avery", "Liz Sockett", "Erwin Chargaff", "Tracey Rogers",
	"Ronald Fisher", "Rachel Carson", "William Harvey", "Nettie Stevens", "Jeffrey Hall",
	"Youyou Tu", "Michael Rosbash", "Carol Greider", "Yoshinori Ohsumi", "Rosalyn Yalow",
	"Amedeo Avogadro", "Virginia Apgar", "Kristian Birkeland", "Mary Anning", "Chen-Ning Yang",
	"Stephanie Kwolek", "Jagadish Bose", "Rita Levi-Montalcini", "Susumu Tonegawa", "Irene Joliot-Curie",
}

const renameHelp = `
Sets first and last name of the training accounts.

    $ omerotools rename-users [names=<names.yaml>] [prefix=user]

    names    YAML or JSON list of full names; the i-th name goes to user-i

    The first word of a name becomes the first name and the rest the last name.
`

const passwordsHelp = `
Changes the password of the training accounts and of the trainer accounts.

    $ omerotools set-passwords new=<password> [users=1-50] [trainers=1-2]
`

const renameSchema = `{
	"type": "object",
	"properties": {
		"names": {"type": "string"},
		"prefix": {"type": "string"}
	},
	"additionalProperties": false
}`

const passwordsSchema = `{
	"type": "object",
	"properties": {
		"new": {"type": "string", "minLength": 1},
		"users": {"type": "string", "pattern": "^[0-9]+(-[0-9]+)?$"},
		"trainers": {"type": "string", "pattern": "^[0-9]+(-[0-9]+)?$"},
		"prefix": {"type": "string"}
	},
	"required": ["new"],
	"additionalProperties": false
}`

func init() {
	scripts.Register(NewRenameScript())
	scripts.Register(NewPasswordsScript())
}

// SplitName splits a full name at the first space.
func SplitName(fullName string) (first, last string) {
	fullName = strings.TrimSpace(fullName)
	if pos := strings.Index(fullName, " "); pos >= 0 {
		return fullName[:pos], strings.TrimSpace(fullName[pos+1:])
	}
	return fullName, ""
}

type RenameScript struct {
	scripts.Base
}

func NewRenameScript() *RenameScript {
	return &RenameScript{scripts.NewBase(scripts.Info{
		Name:        RenameName,
		URL:         RenameURL,
		Version:     Version,
		Description: "Set the names of the training accounts",
		ParamSchema: renameSchema,
	})}
}

func (s *RenameScript) Help() string {
	return s.FullHelp(renameHelp)
}

func (s *RenameScript) Run(ctx context.Context, env *scripts.Env) (*omero.Report, error) {
	names := DefaultNames
	if filename := env.Params.String("names", ""); filename != "" {
		names = nil
		if err := scripts.ReadDataFile(filename, &names); err != nil {
			return nil, err
		}
	}
	prefix := env.Params.String(scripts.KeyUserPrefix, scripts.DefaultUserPrefix)

	conn, err := env.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	report := omero.NewReport(RenameName)
	for i, fullName := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		userName := omero.UserName(prefix, i+1)
		exp, err := conn.LookupExperimenter(ctx, userName)
		if err != nil {
			report.Fail(userName, err)
			continue
		}
		exp.FirstName, exp.LastName = SplitName(fullName)
		if err := conn.UpdateExperimenter(ctx, exp); err != nil {
			report.Fail(userName, err)
			continue
		}
		report.Succeed(userName, "%s", exp.FullName())
	}
	report.Finish("Renamed %d users", len(names))
	return report, nil
}

type PasswordsScript struct {
	scripts.Base
}

func NewPasswordsScript() *PasswordsScript {
	return &PasswordsScript{scripts.NewBase(scripts.Info{
		Name:        PasswordsName,
		URL:         PasswordsURL,
		Version:     Version,
		Description: "Change the passwords of training and trainer accounts",
		ParamSchema: passwordsSchema,
	})}
}

func (s *PasswordsScript) Help() string {
	return s.FullHelp(passwordsHelp)
}

func (s *PasswordsScript) Run(ctx context.Context, env *scripts.Env) (*omero.Report, error) {
	users, err := env.Users(DefaultUsers)
	if err != nil {
		return nil, err
	}
	trainers, err := env.Params.Range("trainers", DefaultTrainers)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, omero.ErrInvalidArgument)
	}
	password := env.Params.String("new", "")
	prefix := env.Params.String(scripts.KeyUserPrefix, scripts.DefaultUserPrefix)

	conn, err := env.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var names []string
	for i := users.First; i <= users.Last; i++ {
		names = append(names, omero.UserName(prefix, i))
	}
	for i := trainers.First; i <= trainers.Last; i++ {
		names = append(names, omero.UserName(TrainerPrefix, i))
	}
	report := omero.NewReport(PasswordsName)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := conn.SetPassword(ctx, name, password); err != nil {
			report.Fail(name, err)
			continue
		}
		report.Succeed(name, "password changed")
	}
	report.Finish("Changed passwords of %d accounts", len(names))
	return report, nil
}
