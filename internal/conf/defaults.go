// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "OrchidNET-Go")

	viper.SetDefault("fetch.useragentcontact", "https://github.com/verdantlab/orchidnet-go")
	viper.SetDefault("fetch.mindomaindelay", 2*time.Second)
	viper.SetDefault("fetch.assetdelay", 1*time.Second)
	viper.SetDefault("fetch.timeout", 30*time.Second)
	viper.SetDefault("fetch.globalrate", 1.0)

	viper.SetDefault("sources.iospe.enabled", true)
	viper.SetDefault("sources.iospe.maxtaxa", 50)
	viper.SetDefault("sources.singapore.enabled", true)
	viper.SetDefault("sources.singapore.maxtaxa", 50)
	viper.SetDefault("sources.gbif.enabled", true)
	viper.SetDefault("sources.gbif.maxtaxa", 100)
	viper.SetDefault("sources.inaturalist.enabled", true)
	viper.SetDefault("sources.inaturalist.maxtaxa", 100)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "orchidnet.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "orchidnet")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "orchidnet")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
}
