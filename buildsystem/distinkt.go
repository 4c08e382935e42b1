package buildsystem

import (
	"bufio"
	"bytes"
	"log"
	"strings"

	"github.com/ognibuild/ognibuild/requirement"
	"github.com/ognibuild/ognibuild/session"
)

// DistInkt drives a Perl Dist::Zilla or Dist::Inkt project, detected by
// a dist.ini file's declared ";; class" directive.
type DistInkt struct{ common }

func (d *DistInkt) setup() error {
	return d.Resolver.Install([]requirement.Requirement{perlPkg("Dist::Inkt")})
}

func (d *DistInkt) Dist() error {
	if err := d.setup(); err != nil {
		return err
	}
	data, err := readFile(d.Session, "dist.ini")
	if err != nil {
		return err
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Bytes()
		if !bytes.HasPrefix(line, []byte(";;")) {
			continue
		}
		parts := bytes.SplitN(line[2:], []byte("="), 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(string(parts[0]))
		value := strings.TrimSpace(string(parts[1]))
		if key == "class" && strings.HasPrefix(value, "'Dist::Inkt") {
			log.Printf("found Dist::Inkt section in dist.ini, assuming distinkt")
			module := strings.Trim(value, "'")
			if err := d.Session.CheckCall([]string{"cpan", "install", module}, session.RunOptions{User: "root"}); err != nil {
				return err
			}
			return d.run([]string{"distinkt-dist"})
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	log.Printf("found dist.ini, assuming dist-zilla")
	if err := d.Resolver.Install([]requirement.Requirement{perlPkg("Dist::Zilla")}); err != nil {
		return err
	}
	return d.run([]string{"dzil", "build", "--in", ".."})
}
