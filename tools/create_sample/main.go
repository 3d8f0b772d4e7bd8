package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	// Default values
	defaultRows    = 1000
	defaultOutFile = "sample.csv"
	defaultSeed    = 42

	// Constants for data generation
	firstNames   = "John,Jane,Bob,Mary,Alice,David,Emma,Michael,Olivia,James,Sophia,William,Ava,Benjamin,Mia,Daniel,Charlotte,Matthew,Amelia,Henry"
	lastNames    = "Smith,Johnson,Williams,Jones,Brown,Davis,Miller,Wilson,Moore,Taylor,Anderson,Thomas,Jackson,White,Harris,Martin,Thompson,Garcia,Martinez,Robinson"
	domains      = "gmail.com,yahoo.com,hotmail.com,outlook.com,icloud.com,example.com,company.com,business.org,school.edu,local.net"
	statusValues = "active,inactive,pending,suspended,deleted"
	stateValues  = "AL,AK,AZ,AR,CA,CO,CT,DE,FL,GA,HI,ID,IL,IN,IA,KS,KY,LA,ME,MD,MA,MI,MN,MS,MO,MT,NE,NV,NH,NJ,NM,NY,NC,ND,OH,OK,OR,PA,RI,SC,SD,TN,TX,UT,VT,VA,WA,WV,WI,WY"
)

// header is the sample layout; the first column is the record ID.
var header = []string{"ID", "First Name", "Last Name", "Email", "State", "Status", "Balance"}

// Config for the sample generator
type Config struct {
	rows    int
	outFile string
	seed    int64
	uuids   bool
}

func main() {
	// Parse command-line flags
	cfg := Config{}
	flag.IntVar(&cfg.rows, "rows", defaultRows, "Number of sample rows")
	flag.StringVar(&cfg.outFile, "out", defaultOutFile, "Output CSV file")
	flag.Int64Var(&cfg.seed, "seed", defaultSeed, "Random seed")
	flag.BoolVar(&cfg.uuids, "uuid", false, "Use UUIDs instead of sequential IDs")
	flag.Parse()

	f, err := os.Create(cfg.outFile)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", cfg.outFile, err)
	}

	bw := bufio.NewWriter(f)
	if err := generate(bw, cfg); err != nil {
		f.Close()
		log.Fatalf("Failed to generate sample: %v", err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		log.Fatalf("Failed to write %s: %v", cfg.outFile, err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("Failed to close %s: %v", cfg.outFile, err)
	}

	fmt.Printf("Wrote %d rows to %s\n", cfg.rows, cfg.outFile)
}

// generate writes a header and cfg.rows data rows. Values never contain
// commas or quotes, so the output is readable by the plain CSV reader.
func generate(w io.Writer, cfg Config) error {
	rng := rand.New(rand.NewPCG(uint64(cfg.seed), 0))
	first := strings.Split(firstNames, ",")
	last := strings.Split(lastNames, ",")
	mail := strings.Split(domains, ",")
	status := strings.Split(statusValues, ",")
	states := strings.Split(stateValues, ",")
	pick := func(values []string) string { return values[rng.IntN(len(values))] }

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}

	for i := 1; i <= cfg.rows; i++ {
		id := strconv.Itoa(i)
		if cfg.uuids {
			id = uuid.NewString()
		}
		fn, ln := pick(first), pick(last)
		row := []string{
			id,
			fn,
			ln,
			strings.ToLower(fn+"."+ln) + "@" + pick(mail),
			pick(states),
			pick(status),
			strconv.FormatFloat(rng.Float64()*10000, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
