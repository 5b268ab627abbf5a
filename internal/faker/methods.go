package faker

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"synthstream/internal/schema"
)

// methodFunc produces the value for row i of a call.
type methodFunc func(f *gofakeit.Faker, p Params, i int) (any, error)

// methods maps "provider.method" to its implementation. Integer results are
// int64 and timestamps are UTC time.Time so that a column has one Go type.
var methods = map[string]methodFunc{
	// person
	"person.first_name": str(func(f *gofakeit.Faker) string { return f.FirstName() }),
	"person.last_name":  str(func(f *gofakeit.Faker) string { return f.LastName() }),
	"person.surname":    str(func(f *gofakeit.Faker) string { return f.LastName() }),
	"person.full_name":  str(func(f *gofakeit.Faker) string { return f.Name() }),
	"person.name":       str(func(f *gofakeit.Faker) string { return f.FirstName() }),
	"person.email":      str(func(f *gofakeit.Faker) string { return f.Email() }),
	"person.username":   str(func(f *gofakeit.Faker) string { return f.Username() }),
	"person.telephone":  str(func(f *gofakeit.Faker) string { return f.Phone() }),
	"person.phone_number": str(func(f *gofakeit.Faker) string {
		return f.PhoneFormatted()
	}),
	"person.gender":     str(func(f *gofakeit.Faker) string { return f.Gender() }),
	"person.occupation": str(func(f *gofakeit.Faker) string { return f.JobTitle() }),
	"person.age": func(f *gofakeit.Faker, p Params, _ int) (any, error) {
		return intBetween(f, p, "minimum", 16, "maximum", 66)
	},

	// address
	"address.city":        str(func(f *gofakeit.Faker) string { return f.City() }),
	"address.country":     str(func(f *gofakeit.Faker) string { return f.Country() }),
	"address.street_name": str(func(f *gofakeit.Faker) string { return f.StreetName() }),
	"address.address":     str(func(f *gofakeit.Faker) string { return f.Street() }),
	"address.postal_code": str(func(f *gofakeit.Faker) string { return f.Zip() }),
	"address.zip_code":    str(func(f *gofakeit.Faker) string { return f.Zip() }),
	"address.state":       str(func(f *gofakeit.Faker) string { return f.State() }),
	"address.latitude":    flt(func(f *gofakeit.Faker) float64 { return f.Latitude() }),
	"address.longitude":   flt(func(f *gofakeit.Faker) float64 { return f.Longitude() }),

	// datetime
	"datetime.datetime": func(f *gofakeit.Faker, p Params, _ int) (any, error) {
		return dateBetween(f, p)
	},
	"datetime.date": func(f *gofakeit.Faker, p Params, _ int) (any, error) {
		t, err := dateBetween(f, p)
		if err != nil {
			return nil, err
		}
		return t.Truncate(24 * time.Hour), nil
	},
	"datetime.year": func(f *gofakeit.Faker, p Params, _ int) (any, error) {
		return intBetween(f, p, "minimum", 1990, "maximum", time.Now().Year())
	},
	"datetime.timestamp": func(f *gofakeit.Faker, p Params, _ int) (any, error) {
		t, err := dateBetween(f, p)
		if err != nil {
			return nil, err
		}
		return t.Unix(), nil
	},

	// numeric
	"numeric.integer_number": func(f *gofakeit.Faker, p Params, _ int) (any, error) {
		return intBetween(f, p, "start", -1000, "end", 1000)
	},
	"numeric.float_number": func(f *gofakeit.Faker, p Params, _ int) (any, error) {
		lo, err := p.Float(0, "start", -1000)
		if err != nil {
			return nil, err
		}
		hi, err := p.Float(1, "end", 1000)
		if err != nil {
			return nil, err
		}
		prec, err := p.Int(2, "precision", 15)
		if err != nil {
			return nil, err
		}
		if lo > hi {
			return nil, fmt.Errorf("start %v is greater than end %v", lo, hi)
		}
		return round(f.Float64Range(lo, hi), prec), nil
	},
	"numeric.increment": func(_ *gofakeit.Faker, p Params, i int) (any, error) {
		start, err := p.Int(-1, "start", 1)
		if err != nil {
			return nil, err
		}
		return int64(start + i), nil
	},

	// development
	"development.boolean": func(f *gofakeit.Faker, _ Params, _ int) (any, error) {
		return f.Bool(), nil
	},
	"development.programming_language": str(func(f *gofakeit.Faker) string { return f.ProgrammingLanguage() }),
	"development.version":              str(func(f *gofakeit.Faker) string { return f.AppVersion() }),

	// cryptographic
	"cryptographic.uuid": str(func(f *gofakeit.Faker) string { return f.UUID() }),

	// text
	"text.word":  str(func(f *gofakeit.Faker) string { return f.Word() }),
	"text.color": str(func(f *gofakeit.Faker) string { return f.Color() }),
	"text.quote": str(func(f *gofakeit.Faker) string { return f.Quote() }),
	"text.sentence": func(f *gofakeit.Faker, p Params, _ int) (any, error) {
		n, err := p.Int(0, "words", 8)
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, fmt.Errorf("words must be positive, got %d", n)
		}
		ws := make([]string, n)
		for i := range ws {
			ws[i] = f.Word()
		}
		s := strings.Join(ws, " ")
		return strings.ToUpper(s[:1]) + s[1:] + ".", nil
	},

	// finance
	"finance.company":           str(func(f *gofakeit.Faker) string { return f.Company() }),
	"finance.currency_iso_code": str(func(f *gofakeit.Faker) string { return f.CurrencyShort() }),
	"finance.price": func(f *gofakeit.Faker, p Params, _ int) (any, error) {
		lo, err := p.Float(0, "minimum", 500)
		if err != nil {
			return nil, err
		}
		hi, err := p.Float(1, "maximum", 1500)
		if err != nil {
			return nil, err
		}
		if lo > hi {
			return nil, fmt.Errorf("minimum %v is greater than maximum %v", lo, hi)
		}
		return round(f.Price(lo, hi), 2), nil
	},

	// internet
	"internet.url":        str(func(f *gofakeit.Faker) string { return f.URL() }),
	"internet.ip_v4":      str(func(f *gofakeit.Faker) string { return f.IPv4Address() }),
	"internet.ip_v6":      str(func(f *gofakeit.Faker) string { return f.IPv6Address() }),
	"internet.hostname":   str(func(f *gofakeit.Faker) string { return f.DomainName() }),
	"internet.user_agent": str(func(f *gofakeit.Faker) string { return f.UserAgent() }),
	"internet.http_method": str(func(f *gofakeit.Faker) string {
		return f.HTTPMethod()
	}),

	// choice
	"choice.choice": func(f *gofakeit.Faker, p Params, _ int) (any, error) {
		items, err := p.List(0, "items")
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("items must not be empty")
		}
		if n, _ := p.Int(1, "length", 0); n > 1 {
			return nil, fmt.Errorf("length %d is not supported; only single picks are", n)
		}
		return items[f.Number(0, len(items)-1)], nil
	},
}

// byMethod indexes the table by bare method name so that "first_name" works
// without a provider. When two providers share a method the alphabetically
// first provider wins.
var byMethod = func() map[string]string {
	keys := make([]string, 0, len(methods))
	for k := range methods {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := map[string]string{}
	for _, k := range keys {
		_, m := schema.SplitGenerator(k)
		if _, dup := out[m]; !dup {
			out[m] = k
		}
	}
	return out
}()

func lookupMethod(ref string) (methodFunc, bool) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if fn, ok := methods[ref]; ok {
		return fn, true
	}
	provider, method := schema.SplitGenerator(ref)
	if provider != "" {
		return nil, false
	}
	if key, ok := byMethod[method]; ok {
		return methods[key], true
	}
	return nil, false
}

// Methods lists the provider.method names of the built-in table, sorted.
func Methods() []string {
	out := make([]string, 0, len(methods))
	for k := range methods {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func str(fn func(*gofakeit.Faker) string) methodFunc {
	return func(f *gofakeit.Faker, _ Params, _ int) (any, error) { return fn(f), nil }
}

func flt(fn func(*gofakeit.Faker) float64) methodFunc {
	return func(f *gofakeit.Faker, _ Params, _ int) (any, error) { return fn(f), nil }
}

func intBetween(f *gofakeit.Faker, p Params, loName string, lo int, hiName string, hi int) (any, error) {
	a, err := p.Int(0, loName, lo)
	if err != nil {
		return nil, err
	}
	b, err := p.Int(1, hiName, hi)
	if err != nil {
		return nil, err
	}
	if a > b {
		return nil, fmt.Errorf("%s %d is greater than %s %d", loName, a, hiName, b)
	}
	return int64(f.Number(a, b)), nil
}

// dateBetween picks a UTC instant between the start and end years, inclusive
// of the whole end year. Timestamps are truncated to microseconds, the
// precision every sink stores.
func dateBetween(f *gofakeit.Faker, p Params) (time.Time, error) {
	start, err := p.Year(0, "start", 2000)
	if err != nil {
		return time.Time{}, err
	}
	end, err := p.Year(1, "end", time.Now().Year())
	if err != nil {
		return time.Time{}, err
	}
	if end.Month() == time.January && end.Day() == 1 && end.Hour() == 0 {
		end = end.AddDate(1, 0, 0).Add(-time.Microsecond)
	}
	if start.After(end) {
		return time.Time{}, fmt.Errorf("start %s is after end %s", start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return f.DateRange(start, end).UTC().Truncate(time.Microsecond), nil
}

func round(v float64, prec int) float64 {
	if prec < 0 || prec > 15 {
		return v
	}
	pow := math.Pow(10, float64(prec))
	return math.Round(v*pow) / pow
}
